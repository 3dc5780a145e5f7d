package scheduler

import (
	"fmt"
	"math"
	"math/rand"
)

// QLearning is a learned filestore-selection policy: simplified Watkins
// Q-learning over a discretized state space, in the same shape as a
// discretized (load, data size, location, stage, time slot) state acting
// over a fixed action space. Here the state is discretized from the same
// observation the greedy policy sees (compute bandwidth bucket, best
// candidate bandwidth bucket, candidate count) and the action is simply
// "pick candidate i" over however many candidates are present this call.
//
// Greedy is the default policy; this type exists because the scheduler is
// left pluggable for a learned alternative. cmd/simulate only wires it in
// when run with "-policy qlearning"; Update must be called explicitly by
// the caller with the realized reward to actually learn anything.
type QLearning struct {
	qTable  map[string][]float64
	alpha   float64
	gamma   float64
	epsilon float64
	buckets int
	rng     *rand.Rand

	lastState  string
	lastAction int
}

// NewQLearning constructs a learned policy with the given TD parameters.
func NewQLearning(alpha, gamma, epsilon float64, buckets int, rng *rand.Rand) *QLearning {
	return &QLearning{
		qTable:  make(map[string][]float64),
		alpha:   alpha,
		gamma:   gamma,
		epsilon: epsilon,
		buckets: buckets,
		rng:     rng,
	}
}

func (q *QLearning) discretize(obs Observation) string {
	bucket := func(v, lo, hi float64) int {
		if hi <= lo {
			return 0
		}
		b := int((v - lo) / (hi - lo) * float64(q.buckets))
		if b < 0 {
			b = 0
		}
		if b >= q.buckets {
			b = q.buckets - 1
		}
		return b
	}
	best := 0.0
	for _, bw := range obs.CandidateBW {
		if bw > best {
			best = bw
		}
	}
	return fmt.Sprintf("%d:%d:%d", bucket(obs.ComputeBW, 0, 200), bucket(best, 0, 200), len(obs.CandidateBW))
}

// SelectFilestore implements Policy over the Q-table: for an unseen state,
// and with probability epsilon otherwise, it defers to Greedy; else it
// takes the candidate with the highest Q-value, the lowest index among
// equal values.
func (q *QLearning) SelectFilestore(obs Observation) int {
	n := len(obs.CandidateBW)
	if n == 0 {
		return Drop
	}
	state := q.discretize(obs)
	q.lastState = state

	if _, seen := q.qTable[state]; !seen || q.rng.Float64() < q.epsilon {
		action := Greedy{}.SelectFilestore(obs)
		q.lastAction = action
		return action
	}

	values := q.qTable[state]
	best, bestVal := 0, math.Inf(-1)
	for i := 0; i < n && i < len(values); i++ {
		if values[i] > bestVal {
			best, bestVal = i, values[i]
		}
	}
	q.lastAction = best
	return best
}

// Update applies the TD(0) correction for the last SelectFilestore call
// given the realized reward, growing the Q-table's row for lastState to
// fit candidateCount actions if needed.
func (q *QLearning) Update(reward float64, candidateCount int) {
	if q.lastState == "" || q.lastAction < 0 {
		return
	}
	row, ok := q.qTable[q.lastState]
	if !ok || len(row) < candidateCount {
		grown := make([]float64, candidateCount)
		copy(grown, row)
		row = grown
		q.qTable[q.lastState] = row
	}
	if q.lastAction >= len(row) {
		return
	}
	maxNext := 0.0
	for _, v := range row {
		if v > maxNext {
			maxNext = v
		}
	}
	row[q.lastAction] += q.alpha * (reward + q.gamma*maxNext - row[q.lastAction])
}
