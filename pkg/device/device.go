// Package device models a single simulated device's resources, storage,
// and per-role task bookkeeping (component C): CPU/memory/bandwidth
// capacity, stored container layers and application blobs with
// cached-layer TTL eviction, multi-role task lists, and per-resource
// dynamic unit pricing.
package device

import (
	"math"
	"math/rand"

	"github.com/casperlundberg/openraas-sim/pkg/catalog"
	"github.com/casperlundberg/openraas-sim/pkg/simerr"
	"github.com/casperlundberg/openraas-sim/pkg/task"
)

// Kind enumerates the four device kinds.
type Kind int

const (
	Server Kind = iota
	Desktop
	Mobile
	IoT
)

// Resource identifies one of the three rationed resources.
type Resource int

const (
	CPU Resource = iota
	Mem
	BW
)

// Role identifies one of the three composition roles a device can play
// for a given task.
const (
	RoleCompute    = 0
	RoleFilestore  = 1
	RoleDepository = 2
)

const tolerance = 1e-10

// Capacity is the (cpu, mem, bw) resource triple.
type Capacity struct {
	CPU float64
	Mem float64
	BW  float64
}

// PriceCoefficients are the per-resource linear pricing coefficients.
type PriceCoefficients struct {
	CPU float64
	Mem float64
	BW  float64
}

type storedLayer struct {
	data *catalog.Data
	ttl  int
}

// Device is the mutable resource/storage/task-bookkeeping state of one
// simulated device.
type Device struct {
	ID       int
	Kind     Kind
	Capacity Capacity
	IsOpen   bool
	IsMobile bool
	IsWorker bool
	IsClient bool

	WorkerType int // cardinality reported in observations

	PriceCoef PriceCoefficients

	FreeCPU float64
	FreeMem float64
	FreeBW  float64

	// roleTasks[0]=cal_tasks (compute), [1]=metaos_tasks (filestore),
	// [2]=image_tasks (depository).
	roleTasks [3][]*task.Task

	ReqTasks []*task.Task // committed tasks this device's client originated
	NewTasks []*task.Task // emitted this slot (client only)

	layers     map[int]*storedLayer
	apps       map[int]*catalog.Data
	defaultTTL int // -1 for servers (never evict), 5 for clients
}

// New constructs a device with the given identity/capacity. Resources are
// left at zero; call Reset before use (a constructor-then-reset pattern).
func New(id int, kind Kind, cap Capacity, isOpen, isMobile bool, priceCoef PriceCoefficients, defaultTTL int) *Device {
	return &Device{
		ID:         id,
		Kind:       kind,
		Capacity:   cap,
		IsOpen:     isOpen,
		IsMobile:   isMobile,
		PriceCoef:  priceCoef,
		defaultTTL: defaultTTL,
		layers:     make(map[int]*storedLayer),
		apps:       make(map[int]*catalog.Data),
	}
}

// Reset re-initializes free resources, discarding any stored layers/apps
// and subtracting nothing further.
func (d *Device) Reset() {
	d.FreeCPU = d.Capacity.CPU
	d.FreeMem = d.Capacity.Mem
	d.FreeBW = d.Capacity.BW
	d.roleTasks = [3][]*task.Task{}
	d.ReqTasks = nil
	d.NewTasks = nil
	d.layers = make(map[int]*storedLayer)
	d.apps = make(map[int]*catalog.Data)
}

// RoleTasks returns the task list for the given role (0/1/2).
func (d *Device) RoleTasks(role int) ([]*task.Task, error) {
	if role < 0 || role > 2 {
		return nil, simerr.New("device.RoleTasks", simerr.OutOfRange)
	}
	return d.roleTasks[role], nil
}

// HasLayer reports whether this device currently stores the given layer id.
func (d *Device) HasLayer(id int) bool {
	_, ok := d.layers[id]
	return ok
}

// HasApp reports whether this device currently stores the given app id.
func (d *Device) HasApp(id int) bool {
	_, ok := d.apps[id]
	return ok
}

// StoredLayerIDs returns the ids of every layer currently stored.
func (d *Device) StoredLayerIDs() []int {
	ids := make([]int, 0, len(d.layers))
	for id := range d.layers {
		ids = append(ids, id)
	}
	return ids
}

// FetchLayer stores layer on this device, recording the catalog reverse
// index and starting its TTL countdown. Re-fetching an already-stored
// layer is a no-op refresh of its TTL rather than an error, matching the
// teacher's "exists, skip" behavior.
func (d *Device) FetchLayer(layer *catalog.Data) error {
	if sl, ok := d.layers[layer.ID]; ok {
		sl.ttl = d.defaultTTL
		return nil
	}
	if d.FreeMem < layer.SizeMB {
		return simerr.New("device.FetchLayer", simerr.Insufficient)
	}
	if err := layer.AddHost(d.ID); err != nil {
		return err
	}
	d.layers[layer.ID] = &storedLayer{data: layer, ttl: d.defaultTTL}
	d.FreeMem -= layer.SizeMB
	return nil
}

// RemoveLayer evicts layer from this device.
func (d *Device) RemoveLayer(layer *catalog.Data) error {
	sl, ok := d.layers[layer.ID]
	if !ok {
		return simerr.New("device.RemoveLayer", simerr.NotFound)
	}
	if err := layer.RemoveHost(d.ID); err != nil {
		return err
	}
	delete(d.layers, layer.ID)
	d.FreeMem += sl.data.SizeMB
	return nil
}

// StoreData places an application or layer on this device, requiring
// free_mem >= data.size.
func (d *Device) StoreData(data *catalog.Data) error {
	if d.FreeMem < data.SizeMB {
		return simerr.New("device.StoreData", simerr.Insufficient)
	}
	if err := data.AddHost(d.ID); err != nil {
		return err
	}
	d.FreeMem -= data.SizeMB
	if data.IsLayer {
		d.layers[data.ID] = &storedLayer{data: data, ttl: d.defaultTTL}
	} else {
		d.apps[data.ID] = data
	}
	return nil
}

// Step decrements every stored layer's TTL and evicts any that hit zero
// (servers' TTL is -1 and never reaches it); for clients it clears
// NewTasks and probabilistically emits a new task.
func (d *Device) Step(rng *rand.Rand, cat *catalog.Catalog, cfg task.GenConfig, nextID func() int) error {
	var expired []*storedLayer
	for _, sl := range d.layers {
		if sl.ttl < 0 {
			continue // servers: never evict
		}
		sl.ttl--
		if sl.ttl == 0 {
			expired = append(expired, sl)
		}
	}
	for _, sl := range expired {
		if err := d.RemoveLayer(sl.data); err != nil {
			return err
		}
	}

	if d.IsClient {
		d.NewTasks = nil
		if rng.Float64() < cfg.EmitProbability {
			t := task.Generate(rng, cat, cfg, d.ID, nextID())
			if t.Kind == task.Desktop {
				// bw uniform in [0.01, min(1, client.bw)] MBps
				hi := math.Min(1, d.Capacity.BW)
				if hi < 0.01 {
					hi = 0.01
				}
				t.DesktopBW = 0.01 + rng.Float64()*(hi-0.01)
			}
			d.NewTasks = append(d.NewTasks, t)
		}
	}
	return nil
}

// FindMissingLayers returns the env-layer ids of task t's app not
// currently stored by this device.
func (d *Device) FindMissingLayers(t *task.Task) []int {
	have := make(map[int]struct{}, len(d.layers))
	for id := range d.layers {
		have[id] = struct{}{}
	}
	return catalog.MissingEnvLayers(t.App, have)
}

// CheckTaskAvailability performs the role-specific feasibility check.
func (d *Device) CheckTaskAvailability(role int, t *task.Task) bool {
	if t.Kind == task.Desktop {
		var bw float64
		switch role {
		case RoleCompute:
			bw = t.Bandwidth(0) + t.Bandwidth(1)
		case RoleFilestore:
			if d.ID != mustCompute(t) {
				bw = t.Bandwidth(1)
			}
		}
		if bw > d.FreeBW {
			return false
		}
	}

	switch role {
	case RoleCompute:
		if d.IsMobile || !d.IsOpen || t.CPU > d.FreeCPU {
			return false
		}
		required := 0.0
		if t.Kind != task.StorageKind {
			required += t.Mem
		}
		required += sumMissingLayerSize(d, t)
		return required <= d.FreeMem
	case RoleFilestore:
		if t.Kind == task.StorageKind {
			return !d.IsMobile && t.Mem <= d.FreeMem
		}
		return d.HasApp(t.App.ID)
	case RoleDepository:
		for _, id := range t.App.EnvLayers {
			if d.HasLayer(id) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func mustCompute(t *task.Task) int {
	id, _ := t.Provider(0)
	return id
}

func sumMissingLayerSize(d *Device, t *task.Task) float64 {
	var sum float64
	for _, id := range t.App.EnvLayers {
		if !d.HasLayer(id) {
			if entry, ok := lookupEnvLayer(t, id); ok {
				sum += entry
			}
		}
	}
	return sum
}

// lookupEnvLayer resolves an env-layer id's size from the task's app
// metadata; callers that need this outside CheckTaskAvailability should
// go through the catalog directly. This tiny helper avoids importing
// *catalog.Catalog here by reading sizes off the already-resolved
// catalog.Data entries reachable from t.App's EnvLayerData, populated by
// catalog.Build when the app entry is created.
func lookupEnvLayer(t *task.Task, id int) (float64, bool) {
	for _, l := range t.App.EnvLayerData {
		if l.ID == id {
			return l.SizeMB, true
		}
	}
	return 0, false
}

// AllocateTasks pushes t onto the role list and deducts resources.
// layerID is only meaningful for role 2: the specific layer this device
// is refreshing as depository.
func (d *Device) AllocateTasks(role int, t *task.Task, layerID int) error {
	if role < 0 || role > 2 {
		return simerr.New("device.AllocateTasks", simerr.OutOfRange)
	}
	d.roleTasks[role] = append(d.roleTasks[role], t)

	switch role {
	case RoleCompute:
		d.FreeCPU -= t.CPU
		if t.Kind != task.StorageKind {
			d.FreeMem -= t.Mem
		}
		missing := make(map[int]struct{}, len(t.MissingLayers))
		for _, id := range t.MissingLayers {
			missing[id] = struct{}{}
		}
		for _, l := range t.App.EnvLayerData {
			if _, isMissing := missing[l.ID]; isMissing {
				if err := d.FetchLayer(l); err != nil {
					return err
				}
			} else if sl, ok := d.layers[l.ID]; ok {
				sl.ttl = d.defaultTTL
			}
		}
	case RoleFilestore:
		if t.Kind == task.StorageKind {
			d.FreeMem -= t.Mem
		}
	case RoleDepository:
		if sl, ok := d.layers[layerID]; ok {
			sl.ttl = d.defaultTTL
		}
	}
	return nil
}

// ReleaseTask is the inverse of AllocateTasks (depository has no numeric
// deduction to reverse).
func (d *Device) ReleaseTask(role int, t *task.Task) error {
	if role < 0 || role > 2 {
		return simerr.New("device.ReleaseTask", simerr.OutOfRange)
	}
	list := d.roleTasks[role]
	idx := -1
	for i, cand := range list {
		if cand == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		return simerr.New("device.ReleaseTask", simerr.NotFound)
	}
	d.roleTasks[role] = append(list[:idx], list[idx+1:]...)

	switch role {
	case RoleCompute:
		d.FreeCPU += t.CPU
		if t.Kind != task.StorageKind {
			d.FreeMem += t.Mem
		}
	case RoleFilestore:
		if t.Kind == task.StorageKind {
			d.FreeMem += t.Mem
		}
	}
	return nil
}

// ReserveBW implements topology.BandwidthSink: symmetric bandwidth
// reservation must also decrement the device's own bandwidth view.
func (d *Device) ReserveBW(bw float64) error {
	next := d.FreeBW - bw
	if next < -tolerance {
		return simerr.New("device.ReserveBW", simerr.Negative)
	}
	d.FreeBW = next
	return nil
}

// ReleaseBW is the exact inverse of ReserveBW.
func (d *Device) ReleaseBW(bw float64) error {
	next := d.FreeBW + bw
	if next < -tolerance {
		return simerr.New("device.ReleaseBW", simerr.Negative)
	}
	d.FreeBW = next
	return nil
}

// IdleFraction returns 1 - free/capacity for the given resource.
func (d *Device) IdleFraction(r Resource) float64 {
	free, cap := d.resourcePair(r)
	if cap == 0 {
		return 1
	}
	return 1 - free/cap
}

// UnitPrice returns coef[r] / (1 - idle_fraction(r)), clipped to 1e6 at
// full utilization.
func (d *Device) UnitPrice(r Resource) float64 {
	idle := d.IdleFraction(r)
	if idle >= 1 {
		return 1e6
	}
	coef := d.priceCoefFor(r)
	return coef / (1 - idle)
}

func (d *Device) priceCoefFor(r Resource) float64 {
	switch r {
	case CPU:
		return d.PriceCoef.CPU
	case Mem:
		return d.PriceCoef.Mem
	default:
		return d.PriceCoef.BW
	}
}

func (d *Device) resourcePair(r Resource) (free, capacity float64) {
	switch r {
	case CPU:
		return d.FreeCPU, d.Capacity.CPU
	case Mem:
		return d.FreeMem, d.Capacity.Mem
	default:
		return d.FreeBW, d.Capacity.BW
	}
}

// CheckError reconstructs capacity from free + committed + stored and
// reports Illegal if any component is negative/over, Mismatch if capacity
// does not reassemble within 1e-10.
func (d *Device) CheckError() error {
	cpu, mem, bw := d.FreeCPU, d.FreeMem, d.FreeBW

	if cpu < -tolerance || cpu > d.Capacity.CPU+tolerance ||
		mem < -tolerance || mem > d.Capacity.Mem+tolerance ||
		bw < -tolerance || bw > d.Capacity.BW+tolerance {
		return simerr.New("device.CheckError", simerr.Illegal)
	}

	for _, t := range d.roleTasks[RoleCompute] {
		cpu += t.CPU
		if t.Kind != task.StorageKind {
			mem += t.Mem
		}
		bw += t.Bandwidth(0)
		if fs, _ := t.Provider(1); fs != d.ID {
			bw += t.Bandwidth(1)
		}
		onDepository := false
		for _, depID := range t.Depositories() {
			if depID == d.ID {
				onDepository = true
				break
			}
		}
		if !onDepository {
			bw += t.Bandwidth(2)
		}
	}
	for _, t := range d.roleTasks[RoleFilestore] {
		if compute, _ := t.Provider(0); compute != d.ID {
			bw += t.Bandwidth(1)
		}
		if t.Kind == task.StorageKind {
			mem += t.Mem
		}
	}
	for _, t := range d.roleTasks[RoleDepository] {
		if compute, _ := t.Provider(0); compute != d.ID {
			bw += t.Bandwidth(2)
		}
	}
	for _, t := range d.ReqTasks {
		if !t.Dropped {
			bw += t.Bandwidth(0)
		}
	}
	for _, sl := range d.layers {
		mem += sl.data.SizeMB
	}
	for _, a := range d.apps {
		mem += a.SizeMB
	}

	if !math.IsNaN(cpu) && !close(cpu, d.Capacity.CPU) {
		return simerr.New("device.CheckError", simerr.Mismatch)
	}
	if !close(mem, d.Capacity.Mem) {
		return simerr.New("device.CheckError", simerr.Mismatch)
	}
	if !close(bw, d.Capacity.BW) {
		return simerr.New("device.CheckError", simerr.Mismatch)
	}
	return nil
}

func close(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
