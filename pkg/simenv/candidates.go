package simenv

import (
	"math"
	"sort"

	"github.com/casperlundberg/openraas-sim/pkg/device"
	"github.com/casperlundberg/openraas-sim/pkg/scheduler"
	"github.com/casperlundberg/openraas-sim/pkg/simerr"
	"github.com/casperlundberg/openraas-sim/pkg/task"
)

// Observation is the fixed-length telemetry/model-facing vector the
// environment reports each decision point: [u0, w1, w2, w3,
// compute.worker_type, compute.access.bw, |fs_candidates|, then
// (bw, latency, jitter) per filestore candidate,
// padded with (-1,-1,-1) up to candidates_num]. Dropped marks the -1
// sentinel case.
type Observation struct {
	Values  []float64
	Dropped bool
}

func (e *Environment) observationLength() int {
	return e.cfg.TaskInfoNum + 2 + 1 + e.cfg.CandidatesNum*e.cfg.FilestoreInfoNum
}

func (e *Environment) sentinelObservation() Observation {
	vals := make([]float64, e.observationLength())
	for i := range vals {
		vals[i] = -1
	}
	return Observation{Values: vals, Dropped: true}
}

// GetState builds the observation for the task at e.taskIndex:
// compute-worker selection, filestore candidate pool, depository
// selection per missing layer, then the observation vector. Any drop
// decision along the way marks the task dropped and returns the sentinel.
func (e *Environment) GetState() (Observation, error) {
	t := e.newTasks[e.taskIndex]
	e.currentTask = t
	e.fsCandidates = nil
	e.depositoryFor = nil

	client, ok := e.devices[t.UserID]
	if !ok {
		return Observation{}, simerr.New("simenv.GetState", simerr.NotFound)
	}

	if t.Bandwidth(0) > client.FreeBW {
		t.Dropped = true
		return e.sentinelObservation(), nil
	}

	computeID, ok := e.selectCompute(t, client)
	if !ok {
		if e.model.OpportunisticCache {
			e.opportunisticCacheNear(t, client.ID)
		}
		t.Dropped = true
		return e.sentinelObservation(), nil
	}
	if err := t.SetProvider(0, computeID); err != nil {
		return Observation{}, err
	}
	compute := e.devices[computeID]
	t.MissingLayers = compute.FindMissingLayers(t)

	candidates, err := e.selectFilestoreCandidates(t, compute)
	if err != nil {
		return Observation{}, err
	}
	if len(candidates) == 0 {
		if e.model.OpportunisticCache || e.cfg.RaasCache {
			e.opportunisticCacheNear(t, computeID)
		}
		t.Dropped = true
		return e.sentinelObservation(), nil
	}
	e.fsCandidates = candidates

	depFor, ok := e.selectDepositories(t, compute)
	if !ok {
		t.Dropped = true
		return e.sentinelObservation(), nil
	}
	e.depositoryFor = depFor

	return e.buildObservation(t, compute), nil
}

func (e *Environment) selectCompute(t *task.Task, client *device.Device) (int, bool) {
	best := -1
	bestScore := math.Inf(1)
	clientArea, _ := e.topo.AreaOf(client.ID)

	for _, id := range e.workerIDs {
		if id == client.ID {
			continue
		}
		d := e.devices[id]
		if d.IsMobile || !d.IsOpen {
			continue
		}
		if !e.model.RaaS {
			if t.App == nil || !d.HasApp(t.App.ID) || t.Mem > d.FreeMem {
				continue
			}
		}
		if e.cfg.ComputeAtEdge && !e.model.Center {
			area, _ := e.topo.AreaOf(id)
			if area != clientArea {
				continue
			}
		}
		state, err := e.topo.LinkState(client.ID, id)
		if err != nil {
			continue
		}
		if t.Kind == task.Desktop && state.Speed < t.Bandwidth(0) {
			continue
		}
		if !d.CheckTaskAvailability(device.RoleCompute, t) {
			continue
		}
		score := state.Latency + t.Mem/(state.Speed+1e6)*1000
		if score < bestScore {
			bestScore = score
			best = id
		}
	}
	return best, best >= 0
}

func (e *Environment) selectFilestoreCandidates(t *task.Task, compute *device.Device) ([]int, error) {
	if !e.model.RaaS {
		if compute.CheckTaskAvailability(device.RoleFilestore, t) {
			return []int{compute.ID}, nil
		}
		return nil, nil
	}

	if t.Kind == task.StorageKind && e.cfg.PublicDataDeduplication {
		e.deduplicate(t)
	}

	computeArea, _ := e.topo.AreaOf(compute.ID)
	var pool []int
	for _, hostID := range t.App.Hosts() {
		if e.model.AreaRestricted {
			area, _ := e.topo.AreaOf(hostID)
			if area != computeArea {
				continue
			}
		}
		host, ok := e.devices[hostID]
		if !ok || !host.CheckTaskAvailability(device.RoleFilestore, t) {
			continue
		}
		if t.Kind == task.Desktop {
			state, err := e.topo.LinkState(compute.ID, hostID)
			if err != nil {
				continue
			}
			if state.Speed < t.Bandwidth(0)+t.Bandwidth(1) {
				continue
			}
		}
		pool = append(pool, hostID)
	}

	if len(pool) == 0 {
		return nil, nil
	}

	sort.Slice(pool, func(i, j int) bool {
		li, _ := e.topo.AccessLink(pool[i])
		lj, _ := e.topo.AccessLink(pool[j])
		return li.FreeBW > lj.FreeBW
	})
	if len(pool) > e.cfg.CandidatesNum {
		pool = pool[:e.cfg.CandidatesNum]
	}
	return pool, nil
}

// deduplicate drops files whose id falls under the public-data threshold
// and is already cached somewhere, shrinking task.mem to match.
func (e *Environment) deduplicate(t *task.Task) {
	threshold := int(100 * e.cfg.PublicDataRate)
	kept := t.Files[:0]
	for _, f := range t.Files {
		if f.FileID < threshold {
			if _, cached := e.publicFileCache[f.FileID]; cached {
				t.Mem -= f.SizeMB
				continue
			}
		}
		kept = append(kept, f)
	}
	t.Files = kept
}

func (e *Environment) selectDepositories(t *task.Task, compute *device.Device) (map[int]int, bool) {
	if len(t.MissingLayers) == 0 {
		return map[int]int{}, true
	}
	computeAccess, err := e.topo.AccessLink(compute.ID)
	if err != nil {
		return nil, false
	}
	result := make(map[int]int, len(t.MissingLayers))
	for _, layerID := range t.MissingLayers {
		layer, err := e.cat.GetByID(layerID)
		if err != nil {
			return nil, false
		}
		best := -1
		bestScore := math.Inf(1)
		for _, hostID := range layer.Hosts() {
			if hostID == compute.ID {
				continue
			}
			access, err := e.topo.AccessLink(hostID)
			if err != nil {
				continue
			}
			speed := math.Min(access.FreeBW, computeAccess.FreeBW)
			if speed <= 0 {
				continue
			}
			score := access.OccupiedTime + layer.SizeMB/speed*1000
			if score < bestScore {
				bestScore = score
				best = hostID
			}
		}
		if best < 0 {
			return nil, false
		}
		result[layerID] = best
	}
	return result, true
}

// opportunisticCacheNear places the current task's app plus missing layers
// on a non-mobile worker in nearID's area, for the edge_cache model and
// raas_cache config. Best-effort: no candidate with
// room is not an error, the task is dropped regardless.
func (e *Environment) opportunisticCacheNear(t *task.Task, nearID int) {
	if t.App == nil {
		return
	}
	area, _ := e.topo.AreaOf(nearID)
	for _, id := range e.workerIDs {
		d := e.devices[id]
		if d.IsMobile {
			continue
		}
		a, _ := e.topo.AreaOf(id)
		if a != area {
			continue
		}
		if bundleSize(d, t.App) > d.FreeMem {
			continue
		}
		_ = e.bundlePlace(d, t.App)
		return
	}
}

func (e *Environment) buildObservation(t *task.Task, compute *device.Device) Observation {
	vals := make([]float64, e.observationLength())
	vals[0] = t.U0()
	vals[1] = t.QoS[task.WServiceLatency]
	vals[2] = t.QoS[task.WSpeed]
	vals[3] = t.QoS[task.WJitter]

	access, _ := e.topo.AccessLink(compute.ID)
	vals[4] = float64(compute.WorkerType)
	vals[5] = access.FreeBW
	vals[6] = float64(len(e.fsCandidates))

	base := e.cfg.TaskInfoNum + 3
	for i := 0; i < e.cfg.CandidatesNum; i++ {
		off := base + i*e.cfg.FilestoreInfoNum
		if i < len(e.fsCandidates) {
			state, _ := e.topo.LinkState(compute.ID, e.fsCandidates[i])
			vals[off] = state.Speed
			vals[off+1] = state.Latency
			vals[off+2] = state.Jitter
		} else {
			vals[off] = -1
			vals[off+1] = -1
			vals[off+2] = -1
		}
	}
	return Observation{Values: vals}
}

// ScheduleObservation adapts the current candidate pool into the
// scheduler package's Observation shape, for handing to a Policy.
func (e *Environment) ScheduleObservation() scheduler.Observation {
	if e.currentTask == nil || len(e.fsCandidates) == 0 {
		return scheduler.Observation{}
	}
	computeID, _ := e.currentTask.Provider(0)
	access, _ := e.topo.AccessLink(computeID)

	obs := scheduler.Observation{
		ComputeBW:       access.FreeBW,
		CandidateBW:     make([]float64, len(e.fsCandidates)),
		CandidateLat:    make([]float64, len(e.fsCandidates)),
		CandidateJitter: make([]float64, len(e.fsCandidates)),
	}
	for i, id := range e.fsCandidates {
		state, _ := e.topo.LinkState(computeID, id)
		obs.CandidateBW[i] = state.Speed
		obs.CandidateLat[i] = state.Latency
		obs.CandidateJitter[i] = state.Jitter
	}
	return obs
}
