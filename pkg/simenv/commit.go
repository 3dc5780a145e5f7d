package simenv

import (
	"math"

	"github.com/casperlundberg/openraas-sim/pkg/device"
	"github.com/casperlundberg/openraas-sim/pkg/scheduler"
	"github.com/casperlundberg/openraas-sim/pkg/simerr"
	"github.com/casperlundberg/openraas-sim/pkg/task"
)

// Step commits the scheduler's action for the current task,
// then advances to the next task — rolling the slot over via Next when
// the current slot is exhausted — skipping any task candidate generation
// itself drops, until a real decision point surfaces or the episode has
// nothing left to offer this slot. It returns the observation for that
// next task (or a dropped sentinel), the reward earned by the action just
// committed, and whether a new slot was entered along the way.
func (e *Environment) Step(action int) (Observation, float64, bool, error) {
	reward, err := e.commitCurrent(action)
	if err != nil {
		return Observation{}, 0, false, err
	}

	enteredNewSlot := false
	for {
		e.taskIndex++
		if e.taskIndex >= len(e.newTasks) {
			if err := e.Next(); err != nil {
				return Observation{}, 0, false, err
			}
			enteredNewSlot = true
		}
		if e.taskIndex >= len(e.newTasks) {
			return e.sentinelObservation(), reward, enteredNewSlot, nil
		}

		obs, err := e.GetState()
		if err != nil {
			return Observation{}, 0, false, err
		}
		if !obs.Dropped {
			return obs, reward, enteredNewSlot, nil
		}
	}
}

func (e *Environment) commitCurrent(action int) (float64, error) {
	t := e.currentTask
	if t == nil {
		return 0, nil
	}

	if action == scheduler.Drop || t.Dropped {
		t.Dropped = true
		return 0, nil
	}
	if action < 0 || action >= len(e.fsCandidates) {
		return 0, simerr.New("simenv.Step", simerr.OutOfRange)
	}

	fsID := e.fsCandidates[action]
	computeID, _ := t.Provider(0)
	compute := e.devices[computeID]
	filestore := e.devices[fsID]
	client := e.devices[t.UserID]

	if err := t.SetProvider(1, fsID); err != nil {
		return 0, err
	}

	ucState, err := e.topo.LinkState(client.ID, compute.ID)
	if err != nil {
		return 0, err
	}
	cfState, err := e.topo.LinkState(compute.ID, fsID)
	if err != nil {
		return 0, err
	}

	startDelay := 0.0
	for layerID, depID := range e.depositoryFor {
		layer, err := e.cat.GetByID(layerID)
		if err != nil {
			return 0, err
		}
		state, err := e.topo.LinkState(compute.ID, depID)
		if err != nil {
			return 0, err
		}
		occ, err := e.topo.LinkOccupiedTime(compute.ID, depID)
		if err != nil {
			return 0, err
		}
		duration := 0.0
		if state.Speed > 0 && !math.IsInf(state.Speed, 1) {
			duration = layer.SizeMB / state.Speed * 1000
		}
		total := state.Latency + occ + duration
		if total > startDelay {
			startDelay = total
		}
	}

	var speed, jitter, serviceLatency float64
	if t.Kind == task.StorageKind {
		speed = math.Min(ucState.Speed, cfState.Speed)
		jitter = ucState.Jitter + cfState.Jitter
		serviceLatency = cfState.Latency + ucState.Latency + t.Mem/(speed+1e-6)*1000
	} else {
		speed = ucState.Speed
		jitter = ucState.Jitter
		serviceLatency = ucState.Latency
	}

	utility := t.Utility(startDelay, serviceLatency, speed, jitter)

	// Prices read before any allocation perturbs them).
	cost := compute.UnitPrice(device.CPU)*t.CPU +
		compute.UnitPrice(device.BW)*(t.Bandwidth(0)+t.Bandwidth(1)) +
		filestore.UnitPrice(device.BW)*t.Bandwidth(1)
	if t.Kind != task.StorageKind {
		cost += compute.UnitPrice(device.Mem) * t.Mem
	} else {
		cost += filestore.UnitPrice(device.Mem) * t.Mem
	}
	reward := utility - cost

	if err := compute.AllocateTasks(device.RoleCompute, t, -1); err != nil {
		return 0, err
	}
	if err := filestore.AllocateTasks(device.RoleFilestore, t, -1); err != nil {
		return 0, err
	}
	for layerID, depID := range e.depositoryFor {
		dep := e.devices[depID]
		if err := t.SetProvider(2, depID); err != nil {
			return 0, err
		}
		if err := dep.AllocateTasks(device.RoleDepository, t, layerID); err != nil {
			return 0, err
		}
		layer, err := e.cat.GetByID(layerID)
		if err != nil {
			return 0, err
		}
		if _, err := e.topo.Transmit(compute.ID, depID, layer.SizeMB, 0); err != nil {
			return 0, err
		}
	}

	if t.Kind == task.Desktop {
		if err := e.topo.ReserveBW(client.ID, compute.ID, t.Bandwidth(0), client, compute); err != nil {
			return 0, err
		}
		if fsID != computeID {
			if err := e.topo.ReserveBW(compute.ID, fsID, t.Bandwidth(1), compute, filestore); err != nil {
				return 0, err
			}
		}
	} else {
		if _, err := e.topo.Transmit(client.ID, compute.ID, t.Mem, 0); err != nil {
			return 0, err
		}
		if _, err := e.topo.Transmit(compute.ID, fsID, t.Mem, 0); err != nil {
			return 0, err
		}
	}

	if t.Kind == task.StorageKind {
		for _, f := range t.Files {
			e.CacheFile(f.FileID)
		}
	}

	e.scheduled = append(e.scheduled, t)
	e.committed = append(e.committed, t)
	client.ReqTasks = append(client.ReqTasks, t)
	e.servedNum++
	e.lastServedQoS = &ServedQoS{StartDelay: startDelay, ServiceLatency: serviceLatency, Speed: speed, Jitter: jitter}

	return reward, nil
}
