// Package task models a single client request flowing through the
// composition pipeline: a typed task with QoS weights, a provider triple
// (compute/filestore/depositories), and a lifetime countdown (component D).
package task

import (
	"github.com/casperlundberg/openraas-sim/pkg/catalog"
	"github.com/casperlundberg/openraas-sim/pkg/simerr"
)

// Kind enumerates the three task kinds.
type Kind int

const (
	Process Kind = iota
	StorageKind
	Desktop
)

// QoS weight vector indices — fixed positions, never reordered.
const (
	WStartDelay      = 0 // negative, per ms
	WServiceLatency  = 1 // negative, per ms
	WSpeed           = 2 // positive, per MBps
	WJitter          = 3 // negative, per jitter-count
	WLifetime        = 4 // positive, per slot
	WStorage         = 5 // positive, per MB
	WComputation     = 6 // positive, per GFlop
	qosWeightsLength = 7
)

// File is one uploaded file tracked by a storage task, used by the
// public-data deduplication pass.
type File struct {
	FileID int
	SizeMB float64
}

// Task is the single owned record the Environment mutates; every device
// role-list holds only a borrowed reference to it.
type Task struct {
	ID     int
	Kind   Kind
	CPU    float64 // GFlops
	Mem    float64 // MB
	UserID int
	Span   int
	QoS    [qosWeightsLength]float64

	App *catalog.Data

	// providers: [0]=compute id, [1]=filestore id, [2]=depository ids
	computeID     int
	filestoreID   int
	depositoryIDs []int
	MissingLayers []int // captured once at candidate-generation time, immutable through commit

	LifeTime int
	Dropped  bool

	// Files is only populated for storage tasks.
	Files []File

	// DesktopBW is the per-task bandwidth reserved on both the
	// client<->compute and compute<->filestore links, for desktop tasks
	// only.
	DesktopBW float64
}

// New constructs a task with providers unset (-1/-1/nil) and life_time ==
// span; user_id is always required and propagated to the caller unchanged.
func New(id int, kind Kind, userID int, cpu, mem float64, span int) *Task {
	return &Task{
		ID:            id,
		Kind:          kind,
		CPU:           cpu,
		Mem:           mem,
		UserID:        userID,
		Span:          span,
		computeID:     -1,
		filestoreID:   -1,
		depositoryIDs: nil,
		LifeTime:      span,
	}
}

// SetProvider assigns the compute (0) or filestore (1) provider, or
// appends a depository (2). Any other role is OutOfRange.
func (t *Task) SetProvider(role int, deviceID int) error {
	switch role {
	case 0:
		t.computeID = deviceID
	case 1:
		t.filestoreID = deviceID
	case 2:
		t.depositoryIDs = append(t.depositoryIDs, deviceID)
	default:
		return simerr.New("task.SetProvider", simerr.OutOfRange)
	}
	return nil
}

// Provider returns the compute (0) or filestore (1) provider id, or -1 if
// unset. Role 2 is not served by this accessor; use Depositories.
func (t *Task) Provider(role int) (int, error) {
	switch role {
	case 0:
		return t.computeID, nil
	case 1:
		return t.filestoreID, nil
	default:
		return 0, simerr.New("task.Provider", simerr.OutOfRange)
	}
}

// Depositories returns the depository device ids assigned so far.
func (t *Task) Depositories() []int { return t.depositoryIDs }

// IsAllocated reports whether compute and filestore providers are both set.
func (t *Task) IsAllocated() bool { return t.computeID >= 0 && t.filestoreID >= 0 }

// Bandwidth returns the bandwidth occupation for role (0=client<->compute,
// 1=compute<->filestore, 2=compute<->depository). Only desktop tasks
// reserve non-zero bandwidth; other kinds transmit transiently instead.
func (t *Task) Bandwidth(role int) float64 {
	if t.Kind != Desktop {
		return 0
	}
	switch role {
	case 0, 1:
		return t.DesktopBW
	default:
		return 0
	}
}

// Step decrements LifeTime by one slot. A task reaching a negative
// LifeTime without being released by the caller is a bookkeeping bug;
// Step itself never errors, the caller (Environment) checks the boundary.
func (t *Task) Step() { t.LifeTime-- }

// Utility computes the served-task utility:
//
//	(w4*span + w5*mem + w6*cpu) + w0*startDelay + w1*serviceLatency + w2*speed + w3*jitter
func (t *Task) Utility(startDelay, serviceLatency, speed, jitter float64) float64 {
	return t.QoS[WLifetime]*float64(t.Span) + t.QoS[WStorage]*t.Mem + t.QoS[WComputation]*t.CPU +
		t.QoS[WStartDelay]*startDelay + t.QoS[WServiceLatency]*serviceLatency +
		t.QoS[WSpeed]*speed + t.QoS[WJitter]*jitter
}

// U0 is the scalar utility proxy reported in the observation vector: the
// lifetime/storage/computation-driven base utility with zero
// link-quality contribution, letting the scheduler reason about the
// task's intrinsic value independent of which filestore serves it.
func (t *Task) U0() float64 {
	return t.Utility(0, 0, 0, 0)
}

// TotalFileSize sums the still-pending storage-task file sizes.
func (t *Task) TotalFileSize() float64 {
	var sum float64
	for _, f := range t.Files {
		sum += f.SizeMB
	}
	return sum
}
