package runner

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/openraas-sim/pkg/scheduler"
	"github.com/casperlundberg/openraas-sim/pkg/simenv"
)

type RunnerTestSuite struct {
	suite.Suite
}

func (s *RunnerTestSuite) smallConfig() simenv.Config {
	cfg := simenv.DefaultConfig()
	cfg.M = 2
	cfg.N = 6
	cfg.MaxEpLength = 5
	cfg.Seed = 99
	return cfg
}

func (s *RunnerTestSuite) TestRunEpisodeCompletesRequestedSlots() {
	cfg := s.smallConfig()
	cfg.GetStatistics = true

	result, err := RunEpisode("ep-test", cfg, scheduler.NewGreedy())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), cfg.MaxEpLength, result.Episode.Slots)
	assert.Equal(s.T(), "ep-test", result.Episode.ID)
	assert.Len(s.T(), result.Slots, cfg.MaxEpLength)
	assert.GreaterOrEqual(s.T(), result.Episode.DropRate, 0.0)
	assert.LessOrEqual(s.T(), result.Episode.DropRate, 1.0)
}

func (s *RunnerTestSuite) TestRunEpisodeWithoutStatisticsOmitsSlots() {
	cfg := s.smallConfig()
	cfg.GetStatistics = false

	result, err := RunEpisode("ep-nostat", cfg, scheduler.NewGreedy())
	require.NoError(s.T(), err)
	assert.Empty(s.T(), result.Slots)
}

func (s *RunnerTestSuite) TestRunEpisodeWithQLearningPolicy() {
	cfg := s.smallConfig()
	ql := scheduler.NewQLearning(0.1, 0.9, 0.1, 5, rand.New(rand.NewSource(2)))

	result, err := RunEpisode("ep-ql", cfg, ql)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), cfg.MaxEpLength, result.Episode.Slots)
}

func (s *RunnerTestSuite) TestRunSweepProducesOneResultPerEpisode() {
	cfg := s.smallConfig()
	cfg.NumEpTrain = 4

	results, err := RunSweep("sweep", cfg, func() scheduler.Policy { return scheduler.NewGreedy() })
	require.NoError(s.T(), err)
	require.Len(s.T(), results, 4)

	seeds := map[int64]bool{}
	for i, r := range results {
		assert.Equal(s.T(), cfg.MaxEpLength, r.Episode.Slots)
		seeds[r.Episode.Seed] = true
		_ = i
	}
	assert.Len(s.T(), seeds, 4, "each episode uses a distinct seed")
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}
