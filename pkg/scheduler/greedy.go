package scheduler

import "math"

// Greedy is the baseline scheduler, grounded on
// packages/alg/sim/openraas_greedy.py: maximize link bandwidth, then
// minimize latency, then minimize jitter, then take the lowest index
// among ties.
type Greedy struct{}

// NewGreedy constructs the greedy baseline scheduler.
func NewGreedy() *Greedy { return &Greedy{} }

// SelectFilestore implements Policy.
func (Greedy) SelectFilestore(obs Observation) int {
	n := len(obs.CandidateBW)
	if n == 0 {
		return Drop
	}

	linkBW := make([]float64, n)
	maxBW := math.Inf(-1)
	for i, bw := range obs.CandidateBW {
		linkBW[i] = math.Min(obs.ComputeBW, bw)
		if linkBW[i] > maxBW {
			maxBW = linkBW[i]
		}
	}

	tied := filterIndices(n, func(i int) bool { return linkBW[i] == maxBW })

	minLat := math.Inf(1)
	for _, i := range tied {
		if obs.CandidateLat[i] < minLat {
			minLat = obs.CandidateLat[i]
		}
	}
	tied = filterFrom(tied, func(i int) bool { return obs.CandidateLat[i] == minLat })

	minJitter := math.Inf(1)
	for _, i := range tied {
		if obs.CandidateJitter[i] < minJitter {
			minJitter = obs.CandidateJitter[i]
		}
	}
	tied = filterFrom(tied, func(i int) bool { return obs.CandidateJitter[i] == minJitter })

	if len(tied) == 0 {
		return Drop
	}
	return tied[0]
}

func filterIndices(n int, keep func(int) bool) []int {
	var out []int
	for i := 0; i < n; i++ {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

func filterFrom(in []int, keep func(int) bool) []int {
	var out []int
	for _, i := range in {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}
