// Package runner drives pkg/simenv.Environment through a full episode per
// slot-advance/candidate-generation/commit loop, accumulating the flat
// keyed telemetry record each completed episode reports.
package runner

import (
	"fmt"
	"time"

	"github.com/casperlundberg/openraas-sim/internal/telemetry"
	"github.com/casperlundberg/openraas-sim/pkg/scheduler"
	"github.com/casperlundberg/openraas-sim/pkg/simenv"
)

// EpisodeResult bundles the episode-level record with its per-slot
// snapshots (the latter only populated when cfg.GetStatistics is set).
type EpisodeResult struct {
	Episode telemetry.Episode
	Slots   []telemetry.SlotSnapshot
}

type accum struct {
	dropRateSum                                           float64
	serverCPU, serverMem, serverBW                        float64
	workerCPU, workerMem, workerBW                        float64
	combinedCPU, combinedMem, combinedBW                  float64
	startDelaySum, serviceLatencySum, speedSum, jitterSum float64
	slots, servedTasks                                    int
}

func (a *accum) addSlot(dropRate float64, rates simenv.ResourceRates) {
	a.dropRateSum += dropRate
	a.serverCPU += rates.ServerCPU
	a.serverMem += rates.ServerMem
	a.serverBW += rates.ServerBW
	a.workerCPU += rates.WorkerCPU
	a.workerMem += rates.WorkerMem
	a.workerBW += rates.WorkerBW
	a.combinedCPU += rates.CombinedCPU
	a.combinedMem += rates.CombinedMem
	a.combinedBW += rates.CombinedBW
	a.slots++
}

func (a *accum) addServedQoS(q simenv.ServedQoS) {
	a.startDelaySum += q.StartDelay
	a.serviceLatencySum += q.ServiceLatency
	a.speedSum += q.Speed
	a.jitterSum += q.Jitter
	a.servedTasks++
}

func avg(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// RunEpisode drives one full episode (cfg.MaxEpLength slots) of policy
// decisions over a fresh Environment, returning the averaged telemetry
// record.
func RunEpisode(id string, cfg simenv.Config, policy scheduler.Policy) (EpisodeResult, error) {
	env, err := simenv.New(cfg)
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("runner: construct environment: %w", err)
	}
	if err := env.Reset(); err != nil {
		return EpisodeResult{}, fmt.Errorf("runner: reset episode: %w", err)
	}
	if err := env.Next(); err != nil {
		return EpisodeResult{}, fmt.Errorf("runner: prime first slot: %w", err)
	}

	start := time.Now()
	var a accum
	var slotSnapshots []telemetry.SlotSnapshot

	obs, err := env.GetState()
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("runner: initial observation: %w", err)
	}

	for a.slots < cfg.MaxEpLength {
		so := env.ScheduleObservation()
		candidateCount := len(so.CandidateBW)
		willCommit := !obs.Dropped
		action := scheduler.Drop
		if willCommit {
			action = policy.SelectFilestore(so)
		}

		nextObs, reward, enteredNewSlot, err := env.Step(action)
		if err != nil {
			return EpisodeResult{}, fmt.Errorf("runner: step: %w", err)
		}

		if ql, ok := policy.(*scheduler.QLearning); ok {
			ql.Update(reward, candidateCount)
		}
		if willCommit {
			if q, ok := env.LastServedQoS(); ok {
				a.addServedQoS(q)
			}
		}
		if enteredNewSlot {
			a.addSlot(env.LastSlotDropRate(), env.LastSlotRates())
			if cfg.GetStatistics {
				slotSnapshots = append(slotSnapshots, snapshotFor(id, a.slots-1, env))
			}
		}
		obs = nextObs
	}

	ep := telemetry.Episode{
		ID:              id,
		CloudModel:      cfg.CloudModel,
		M:               cfg.M,
		N:               cfg.N,
		Seed:            cfg.Seed,
		Slots:           a.slots,
		StartTime:       start,
		EndTime:         time.Now(),
		DropRate:        avg(a.dropRateSum, a.slots),
		ServerCPURate:   avg(a.serverCPU, a.slots),
		ServerMemRate:   avg(a.serverMem, a.slots),
		ServerBWRate:    avg(a.serverBW, a.slots),
		WorkerCPURate:   avg(a.workerCPU, a.slots),
		WorkerMemRate:   avg(a.workerMem, a.slots),
		WorkerBWRate:    avg(a.workerBW, a.slots),
		CombinedCPURate: avg(a.combinedCPU, a.slots),
		CombinedMemRate: avg(a.combinedMem, a.slots),
		CombinedBWRate:  avg(a.combinedBW, a.slots),
		StartDelay:      avg(a.startDelaySum, a.servedTasks),
		ServiceLatency:  avg(a.serviceLatencySum, a.servedTasks),
		Speed:           avg(a.speedSum, a.servedTasks),
		Jilter:          avg(a.jitterSum, a.servedTasks),
	}

	return EpisodeResult{Episode: ep, Slots: slotSnapshots}, nil
}

func snapshotFor(episodeID string, slot int, env *simenv.Environment) telemetry.SlotSnapshot {
	rates := env.LastSlotRates()
	q, _ := env.LastServedQoS()
	return telemetry.SlotSnapshot{
		EpisodeID:       episodeID,
		Slot:            slot,
		Timestamp:       time.Now(),
		TasksNum:        env.LastSlotTasksNum(),
		ServedNum:       env.LastSlotServedNum(),
		DropRate:        env.LastSlotDropRate(),
		ServerCPURate:   rates.ServerCPU,
		ServerMemRate:   rates.ServerMem,
		ServerBWRate:    rates.ServerBW,
		WorkerCPURate:   rates.WorkerCPU,
		WorkerMemRate:   rates.WorkerMem,
		WorkerBWRate:    rates.WorkerBW,
		CombinedCPURate: rates.CombinedCPU,
		CombinedMemRate: rates.CombinedMem,
		CombinedBWRate:  rates.CombinedBW,
		StartDelay:      q.StartDelay,
		ServiceLatency:  q.ServiceLatency,
		Speed:           q.Speed,
		Jilter:          q.Jitter,
	}
}
