// Package scheduler implements the pluggable policy over filestore
// candidates (component F): one operation, given a task observation,
// choose a filestore candidate index, or drop.
package scheduler

// Drop is the sentinel action meaning "do not serve this task".
const Drop = -1

// Observation is the scheduler-facing view of one task's filestore
// candidates: the compute worker's own access bandwidth, and
// parallel per-candidate bandwidth/latency/jitter slices.
type Observation struct {
	ComputeBW       float64
	CandidateBW     []float64
	CandidateLat    []float64
	CandidateJitter []float64
}

// Policy chooses a filestore candidate index (or Drop) for one task
// observation.
type Policy interface {
	SelectFilestore(obs Observation) int
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc func(obs Observation) int

func (f PolicyFunc) SelectFilestore(obs Observation) int { return f(obs) }
