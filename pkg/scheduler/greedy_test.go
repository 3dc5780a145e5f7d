package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type GreedyTestSuite struct {
	suite.Suite
	g Greedy
}

func (s *GreedyTestSuite) TestEmptyCandidatesDrop() {
	assert.Equal(s.T(), Drop, s.g.SelectFilestore(Observation{}))
}

func (s *GreedyTestSuite) TestBoundaryScenarioS2() {
	obs := Observation{
		ComputeBW:       100,
		CandidateBW:     []float64{50, 80, 80},
		CandidateLat:    []float64{10, 5, 7},
		CandidateJitter: []float64{1, 1, 1},
	}
	assert.Equal(s.T(), 1, s.g.SelectFilestore(obs))
}

func (s *GreedyTestSuite) TestTieBreaksOnJitterThenLowestIndex() {
	obs := Observation{
		ComputeBW:       100,
		CandidateBW:     []float64{80, 80, 80},
		CandidateLat:    []float64{5, 5, 5},
		CandidateJitter: []float64{2, 1, 1},
	}
	assert.Equal(s.T(), 1, s.g.SelectFilestore(obs))
}

func (s *GreedyTestSuite) TestAllTiedPicksLowestIndex() {
	obs := Observation{
		ComputeBW:       100,
		CandidateBW:     []float64{80, 80, 80},
		CandidateLat:    []float64{5, 5, 5},
		CandidateJitter: []float64{1, 1, 1},
	}
	assert.Equal(s.T(), 0, s.g.SelectFilestore(obs))
}

func (s *GreedyTestSuite) TestComputeBWCapsLinkBandwidth() {
	obs := Observation{
		ComputeBW:       10,
		CandidateBW:     []float64{200, 5},
		CandidateLat:    []float64{1, 1},
		CandidateJitter: []float64{1, 1},
	}
	assert.Equal(s.T(), 0, s.g.SelectFilestore(obs))
}

func TestGreedySuite(t *testing.T) {
	suite.Run(t, new(GreedyTestSuite))
}
