package simenv

import (
	"math/rand"

	"github.com/casperlundberg/openraas-sim/pkg/catalog"
	"github.com/casperlundberg/openraas-sim/pkg/device"
	"github.com/casperlundberg/openraas-sim/pkg/task"
	"github.com/casperlundberg/openraas-sim/pkg/topology"
)

// Environment owns the catalog (built once in New and kept across Resets),
// topology, and device population for one simulation, and drives the
// per-slot loop: Next advances the slot, GetState builds an observation
// for the current task, Step commits a scheduler's action.
type Environment struct {
	cfg   Config
	model CloudModel
	rng   *rand.Rand
	cat   *catalog.Catalog

	topo *topology.Topology

	devices   map[int]*device.Device
	serverIDs []int
	clientIDs []int
	workerIDs []int

	nextDeviceID int
	nextTaskID   int

	committed []*task.Task // tasks with an ongoing span, aged by Next
	scheduled []*task.Task // every task ever committed this episode

	newTasks      []*task.Task
	taskIndex     int
	servedNum     int
	slot          int
	currentTask   *task.Task
	fsCandidates  []int
	depositoryFor map[int]int // missing layer id -> depository device id, for the current task

	publicFileCache map[int]struct{}

	lastServedQoS     *ServedQoS
	lastSlotDropRate  float64
	lastSlotRates     ResourceRates
	lastSlotTasksNum  int
	lastSlotServedNum int
}

// New builds the catalog once and resolves the configured cloud model. Call Reset before
// driving the simulation to build the first episode's topology/devices.
func New(cfg Config) (*Environment, error) {
	model, err := resolveCloudModel(cfg.CloudModel)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Environment{
		cfg:             cfg,
		model:           model,
		rng:             rng,
		cat:             catalog.Build(rng),
		publicFileCache: make(map[int]struct{}),
	}, nil
}

// Reset rebuilds the topology and device population for a fresh episode:
// the catalog's identities persist, but its reverse host index is cleared
// so no device starts an episode already hosting data from a prior one.
func (e *Environment) Reset() error {
	e.cat.ClearHosts()

	e.devices = make(map[int]*device.Device)
	e.serverIDs = nil
	e.clientIDs = nil
	e.workerIDs = nil
	e.nextDeviceID = 0
	e.nextTaskID = 0
	e.committed = nil
	e.scheduled = nil
	e.newTasks = nil
	e.taskIndex = 0
	e.servedNum = 0
	e.slot = 0
	e.currentTask = nil
	e.fsCandidates = nil
	e.depositoryFor = nil
	e.publicFileCache = make(map[int]struct{})
	e.lastServedQoS = nil
	e.lastSlotDropRate = 0
	e.lastSlotRates = ResourceRates{}
	e.lastSlotTasksNum = 0
	e.lastSlotServedNum = 0

	e.topo = topology.New(topology.DefaultConfig(e.cfg.AreaNum), e.rng)

	e.createServers()
	e.createClients()

	return e.distributeData()
}

func (e *Environment) allocDeviceID() int {
	id := e.nextDeviceID
	e.nextDeviceID++
	return id
}

func (e *Environment) allocTaskID() int {
	id := e.nextTaskID
	e.nextTaskID++
	return id
}

// Server capacity/pricing is fixed.
var serverCapacity = device.Capacity{CPU: 50, Mem: 1e6, BW: 125}
var serverPriceCoef = device.PriceCoefficients{CPU: 0.4, Mem: 0.0004, BW: 0.4}

// clientProfile describes one client kind's clipped-Gaussian capacity
// ranges. These per-kind device ranges are a reasonable filled-in default
// (documented in DESIGN.md), scaled well below server capacity so client
// workers remain meaningfully resource-constrained. A client's own free
// bandwidth still gates its tasks: GetState drops a task whose client-side
// bandwidth exceeds it.
type clientProfile struct {
	cpuMean, cpuStd, cpuMin float64
	memMean, memStd, memMin float64
	bwMean, bwStd, bwMin    float64
	priceCoef               device.PriceCoefficients
}

var clientProfiles = map[device.Kind]clientProfile{
	device.Desktop: {
		cpuMean: 8, cpuStd: 3, cpuMin: 1,
		memMean: 8000, memStd: 2000, memMin: 500,
		bwMean: 20, bwStd: 5, bwMin: 1,
		priceCoef: device.PriceCoefficients{CPU: 0.6, Mem: 0.0006, BW: 0.6},
	},
	device.Mobile: {
		cpuMean: 2, cpuStd: 1, cpuMin: 0.1,
		memMean: 4000, memStd: 1000, memMin: 200,
		bwMean: 10, bwStd: 3, bwMin: 0.5,
		priceCoef: device.PriceCoefficients{CPU: 0.8, Mem: 0.0008, BW: 0.8},
	},
	device.IoT: {
		cpuMean: 0.5, cpuStd: 0.2, cpuMin: 0.05,
		memMean: 512, memStd: 128, memMin: 32,
		bwMean: 2, bwStd: 1, bwMin: 0.1,
		priceCoef: device.PriceCoefficients{CPU: 1.0, Mem: 0.001, BW: 1.0},
	},
}

func clipped(rng *rand.Rand, mean, std, min float64) float64 {
	v := mean + rng.NormFloat64()*std
	if v < min {
		return min
	}
	return v
}

func (e *Environment) sampleClientProfile(kind device.Kind) (device.Capacity, device.PriceCoefficients) {
	p := clientProfiles[kind]
	cap := device.Capacity{
		CPU: clipped(e.rng, p.cpuMean, p.cpuStd, p.cpuMin),
		Mem: clipped(e.rng, p.memMean, p.memStd, p.memMin),
		BW:  clipped(e.rng, p.bwMean, p.bwStd, p.bwMin),
	}
	return cap, p.priceCoef
}

func (e *Environment) createServers() {
	for i := 0; i < e.cfg.M; i++ {
		id := e.allocDeviceID()
		d := device.New(id, device.Server, serverCapacity, true, false, serverPriceCoef, -1)
		d.WorkerType = int(device.Server)
		d.IsWorker = true
		d.Reset()
		e.devices[id] = d
		e.serverIDs = append(e.serverIDs, id)
		e.workerIDs = append(e.workerIDs, id)

		areaID := -1
		if e.model.Center {
			areaID = 0
		}
		e.topo.AddDevice(id, areaID, true)
	}
}

var clientKinds = []device.Kind{device.Desktop, device.Mobile, device.IoT}

func (e *Environment) createClients() {
	for i := 0; i < e.cfg.N; i++ {
		id := e.allocDeviceID()
		kind := clientKinds[e.rng.Intn(len(clientKinds))]
		cap, priceCoef := e.sampleClientProfile(kind)
		wired := false // clients use wireless access links

		d := device.New(id, kind, cap, true, kind != device.Desktop, priceCoef, clientLayerTTL)
		d.WorkerType = int(kind)
		d.IsClient = true
		d.IsWorker = e.rng.Float64() < e.cfg.WorkerRate
		d.Reset()
		e.devices[id] = d
		e.clientIDs = append(e.clientIDs, id)
		if d.IsWorker && e.model.PeerWorkers {
			e.workerIDs = append(e.workerIDs, id)
		}

		areaID := -1
		if e.model.Center {
			if e.cfg.AreaNum > 1 {
				areaID = 1 + e.rng.Intn(e.cfg.AreaNum-1)
			} else {
				areaID = 0
			}
		}
		e.topo.AddDevice(id, areaID, wired)
	}
}

// CurrentTask returns the task GetState last built an observation for.
func (e *Environment) CurrentTask() *task.Task { return e.currentTask }

// Slot returns the current slot index (0 at episode start, incremented by
// every Next call).
func (e *Environment) Slot() int { return e.slot }

// TasksThisSlot returns how many tasks were collected into new_tasks this
// slot.
func (e *Environment) TasksThisSlot() int { return len(e.newTasks) }

// ServedThisSlot returns how many of this slot's tasks have been served
// (committed, not dropped) so far.
func (e *Environment) ServedThisSlot() int { return e.servedNum }

// Device exposes read access to one device by id, for telemetry/tests.
func (e *Environment) Device(id int) (*device.Device, bool) {
	d, ok := e.devices[id]
	return d, ok
}

// WorkerIDs returns the device ids eligible to act as a worker this
// episode (servers, plus client-workers under the openraas model).
func (e *Environment) WorkerIDs() []int { return append([]int(nil), e.workerIDs...) }

// ClientIDs returns every client device id.
func (e *Environment) ClientIDs() []int { return append([]int(nil), e.clientIDs...) }

// ServedQoS is the per-served-task QoS contribution recorded by the most
// recent Step commit.
type ServedQoS struct {
	StartDelay     float64
	ServiceLatency float64
	Speed          float64
	Jitter         float64
}

// LastServedQoS returns the QoS values from the most recent non-dropped
// commit, if any has happened since the last Reset.
func (e *Environment) LastServedQoS() (ServedQoS, bool) {
	if e.lastServedQoS == nil {
		return ServedQoS{}, false
	}
	return *e.lastServedQoS, true
}

// CacheFile marks fileID as publicly cached somewhere in the topology, as
// if a prior storage task had already uploaded it — the hook
// public-data deduplication checks against. Committed storage tasks call it
// for each of their files; it is exported so tests can seed this state
// directly. There are no per-device file caches.
func (e *Environment) CacheFile(fileID int) {
	e.publicFileCache[fileID] = struct{}{}
}

// LastSlotDropRate and LastSlotRates report the slot that just finished's
// drop rate and resource utilization, captured by Next immediately before
// rolling state over to the new slot.
func (e *Environment) LastSlotDropRate() float64    { return e.lastSlotDropRate }
func (e *Environment) LastSlotRates() ResourceRates { return e.lastSlotRates }

// LastSlotTasksNum and LastSlotServedNum report the finished slot's task
// and served counts, captured alongside LastSlotDropRate/LastSlotRates.
func (e *Environment) LastSlotTasksNum() int  { return e.lastSlotTasksNum }
func (e *Environment) LastSlotServedNum() int { return e.lastSlotServedNum }
