package simenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/openraas-sim/pkg/catalog"
	"github.com/casperlundberg/openraas-sim/pkg/scheduler"
	"github.com/casperlundberg/openraas-sim/pkg/task"
)

type EnvironmentTestSuite struct {
	suite.Suite
}

func (s *EnvironmentTestSuite) newEnv(cfg Config) *Environment {
	env, err := New(cfg)
	require.NoError(s.T(), err)
	require.NoError(s.T(), env.Reset())
	return env
}

func (s *EnvironmentTestSuite) TestResetBuildsPopulationAcrossModels() {
	for _, model := range []int{0, 1, 2, 3, 4, 5} {
		cfg := DefaultConfig()
		cfg.CloudModel = model
		cfg.M = 3
		cfg.N = 10
		cfg.AreaNum = 3
		cfg.Seed = int64(100 + model)
		env := s.newEnv(cfg)
		assert.Len(s.T(), env.serverIDs, 3, "model %d", model)
		assert.Len(s.T(), env.clientIDs, 10, "model %d", model)
		assert.NotEmpty(s.T(), env.workerIDs, "model %d", model)
	}
}

// S1 — empty candidate set drops the task: a storage task under a
// non-RaaS (center) model, where the sole server never hosts the
// distinguished storage app, must be dropped at candidate generation.
func (s *EnvironmentTestSuite) TestEmptyCandidateSetDropsTask() {
	cfg := DefaultConfig()
	cfg.CloudModel = 1 // center: non-RaaS, bundled placement
	cfg.M = 1
	cfg.N = 1
	cfg.AreaNum = 2
	cfg.Seed = 42
	env := s.newEnv(cfg)

	client := env.devices[env.clientIDs[0]]
	t := task.New(500, task.StorageKind, client.ID, 0, 0, 3)
	t.App = env.cat.StorageMarker
	env.newTasks = []*task.Task{t}
	env.taskIndex = 0

	obs, err := env.GetState()
	require.NoError(s.T(), err)
	assert.True(s.T(), obs.Dropped)
	assert.True(s.T(), t.Dropped)

	reward, err := env.commitCurrent(scheduler.Drop)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0.0, reward)
	assert.Equal(s.T(), 0, env.servedNum)
}

// S4 — reservation release on expiry: a desktop task's bandwidth
// reservation is restored exactly once its span is exhausted.
func (s *EnvironmentTestSuite) TestReservationReleaseOnExpiry() {
	cfg := DefaultConfig()
	cfg.CloudModel = 1 // center: filestore pool is always {compute}
	cfg.M = 1
	cfg.N = 1
	cfg.AreaNum = 1
	cfg.Seed = 7
	env := s.newEnv(cfg)

	server := env.devices[env.serverIDs[0]]
	client := env.devices[env.clientIDs[0]]
	app := env.cat.AppsOfKind(catalog.Desktop)[0]
	require.NoError(s.T(), env.bundlePlace(server, app))

	tk := task.New(9001, task.Desktop, client.ID, 1, 100, 2)
	tk.DesktopBW = 4
	tk.App = app

	env.currentTask = tk
	env.fsCandidates = []int{server.ID}
	env.depositoryFor = map[int]int{}

	initClientBW := client.FreeBW
	initServerBW := server.FreeBW

	reward, err := env.commitCurrent(0)
	require.NoError(s.T(), err)
	_ = reward

	assert.InDelta(s.T(), initClientBW-4, client.FreeBW, 1e-9)
	assert.InDelta(s.T(), initServerBW-4, server.FreeBW, 1e-9)

	tk.Step() // life_time 2 -> 1
	assert.InDelta(s.T(), initClientBW-4, client.FreeBW, 1e-9, "still reserved mid-span")

	tk.Step() // life_time 1 -> 0
	require.NoError(s.T(), env.releaseTask(tk))

	assert.InDelta(s.T(), initClientBW, client.FreeBW, 1e-9)
	assert.InDelta(s.T(), initServerBW, server.FreeBW, 1e-9)
}

// S5 — public-data deduplication: a storage task's already-cached file is
// dropped from its file list and task.mem shrinks to match.
func (s *EnvironmentTestSuite) TestPublicDataDeduplicationReducesMem() {
	cfg := DefaultConfig()
	cfg.CloudModel = 0 // openraas: RaaS
	cfg.PublicDataDeduplication = true
	cfg.PublicDataRate = 0.5 // threshold file_id < 50
	cfg.M = 1
	cfg.N = 1
	cfg.Seed = 3
	env := s.newEnv(cfg)

	env.CacheFile(3)

	tk := task.New(1, task.StorageKind, env.clientIDs[0], 0, 0, 2)
	tk.Files = []task.File{{FileID: 3, SizeMB: 500}, {FileID: 70, SizeMB: 500}}
	tk.Mem = tk.TotalFileSize()

	before := tk.Mem
	env.deduplicate(tk)

	assert.InDelta(s.T(), before-500, tk.Mem, 1e-9)
	assert.Len(s.T(), tk.Files, 1)
	assert.Equal(s.T(), 70, tk.Files[0].FileID)
}

func (s *EnvironmentTestSuite) TestScheduleObservationMatchesCandidatePool() {
	cfg := DefaultConfig()
	cfg.CloudModel = 0
	cfg.M = 3
	cfg.N = 5
	cfg.Seed = 11
	env := s.newEnv(cfg)

	tk := task.New(1, task.Process, env.clientIDs[0], 1, 1, 1)
	tk.App = env.cat.AppsOfKind(catalog.Processing)[0]
	computeID := env.serverIDs[0]
	require.NoError(s.T(), tk.SetProvider(0, computeID))
	env.currentTask = tk
	env.fsCandidates = []int{env.serverIDs[0], env.serverIDs[1]}

	obs := env.ScheduleObservation()
	assert.Len(s.T(), obs.CandidateBW, 2)
	assert.Len(s.T(), obs.CandidateLat, 2)
	assert.Len(s.T(), obs.CandidateJitter, 2)
}

func (s *EnvironmentTestSuite) TestDropRateVacuousSlotIsZero() {
	cfg := DefaultConfig()
	env := s.newEnv(cfg)
	assert.Equal(s.T(), 0.0, env.DropRate())
}

func TestEnvironmentSuite(t *testing.T) {
	suite.Run(t, new(EnvironmentTestSuite))
}
