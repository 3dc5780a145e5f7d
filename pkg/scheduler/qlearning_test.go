package scheduler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type QLearningTestSuite struct {
	suite.Suite
}

func (s *QLearningTestSuite) TestEmptyCandidatesDrop() {
	q := NewQLearning(0.1, 0.9, 0.0, 5, rand.New(rand.NewSource(1)))
	assert.Equal(s.T(), Drop, q.SelectFilestore(Observation{}))
}

func (s *QLearningTestSuite) TestColdStartFallsBackToGreedy() {
	q := NewQLearning(0.1, 0.9, 0.0, 5, rand.New(rand.NewSource(1)))
	obs := Observation{
		ComputeBW:       100,
		CandidateBW:     []float64{50, 80, 80},
		CandidateLat:    []float64{10, 5, 7},
		CandidateJitter: []float64{1, 1, 1},
	}
	assert.Equal(s.T(), Greedy{}.SelectFilestore(obs), q.SelectFilestore(obs))
}

func (s *QLearningTestSuite) TestUpdateRaisesPreferredAction() {
	q := NewQLearning(0.5, 0.9, 0.0, 5, rand.New(rand.NewSource(1)))
	obs := Observation{
		ComputeBW:       100,
		CandidateBW:     []float64{80, 80},
		CandidateLat:    []float64{5, 5},
		CandidateJitter: []float64{1, 1},
	}

	q.SelectFilestore(obs)
	q.lastAction = 1
	q.Update(10, 2)

	q.SelectFilestore(obs)
	q.lastAction = 0
	q.Update(0, 2)

	row := q.qTable[q.discretize(obs)]
	assert.Greater(s.T(), row[1], row[0])
}

func TestQLearningSuite(t *testing.T) {
	suite.Run(t, new(QLearningTestSuite))
}
