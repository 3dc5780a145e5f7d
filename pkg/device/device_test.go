package device

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/openraas-sim/pkg/catalog"
	"github.com/casperlundberg/openraas-sim/pkg/task"
)

func newServer(id int) *Device {
	d := New(id, Server, Capacity{CPU: 50, Mem: 1e6, BW: 125}, true, false, PriceCoefficients{CPU: 0.6, Mem: 0.0006, BW: 0.6}, -1)
	d.IsWorker = true
	d.Reset()
	return d
}

type DeviceTestSuite struct {
	suite.Suite
	cat *catalog.Catalog
}

func (s *DeviceTestSuite) SetupTest() {
	s.cat = catalog.Build(rand.New(rand.NewSource(1)))
}

func (s *DeviceTestSuite) TestResourceInvariantAfterFetchLayer() {
	d := newServer(0)
	layer := s.cat.LayersOfKind(catalog.OS)[0]
	require.NoError(s.T(), d.FetchLayer(layer))
	assert.InDelta(s.T(), d.Capacity.Mem-layer.SizeMB, d.FreeMem, 1e-9)
	assert.True(s.T(), layer.HasHost(d.ID))
}

func (s *DeviceTestSuite) TestServerLayerNeverEvictsAfterManySteps() {
	d := newServer(0)
	layer := s.cat.LayersOfKind(catalog.OS)[0]
	require.NoError(s.T(), d.FetchLayer(layer))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		require.NoError(s.T(), d.Step(rng, s.cat, task.DefaultGenConfig(), func() int { return i }))
	}
	assert.True(s.T(), d.HasLayer(layer.ID))
}

func (s *DeviceTestSuite) TestClientLayerEvictsAtTTL() {
	d := New(1, IoT, Capacity{CPU: 2, Mem: 2000, BW: 5}, true, true, PriceCoefficients{}, 5)
	d.Reset()
	layer := s.cat.LayersOfKind(catalog.OS)[0]
	require.NoError(s.T(), d.FetchLayer(layer))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 4; i++ {
		require.NoError(s.T(), d.Step(rng, s.cat, task.GenConfig{EmitProbability: 0}, func() int { return i }))
		assert.True(s.T(), d.HasLayer(layer.ID), "should still be present at step %d", i)
	}
	require.NoError(s.T(), d.Step(rng, s.cat, task.GenConfig{EmitProbability: 0}, func() int { return 99 }))
	assert.False(s.T(), d.HasLayer(layer.ID))
	assert.False(s.T(), layer.HasHost(d.ID))
}

func (s *DeviceTestSuite) TestAllocateReleaseComputeRoundTrip() {
	d := newServer(0)
	app := s.cat.AppsOfKind(catalog.Processing)[0]
	tk := task.New(1, task.Process, 99, 5, 3, 1)
	tk.App = app
	tk.MissingLayers = nil

	before := d.FreeCPU
	require.NoError(s.T(), d.AllocateTasks(RoleCompute, tk, -1))
	assert.Less(s.T(), d.FreeCPU, before)
	require.NoError(s.T(), d.ReleaseTask(RoleCompute, tk))
	assert.InDelta(s.T(), before, d.FreeCPU, 1e-9)
}

func (s *DeviceTestSuite) TestUnitPriceRisesWithOccupation() {
	d := newServer(0)
	p0 := d.UnitPrice(CPU)
	d.FreeCPU = d.Capacity.CPU * 0.1
	p1 := d.UnitPrice(CPU)
	assert.Greater(s.T(), p1, p0)
}

func (s *DeviceTestSuite) TestUnitPriceClampsAtFullUtilization() {
	d := newServer(0)
	d.FreeCPU = 0
	assert.Equal(s.T(), 1e6, d.UnitPrice(CPU))
}

func (s *DeviceTestSuite) TestCheckErrorCatchesIllegalNegative() {
	d := newServer(0)
	d.FreeCPU = -1
	err := d.CheckError()
	require.Error(s.T(), err)
}

func (s *DeviceTestSuite) TestCheckErrorPassesOnFreshDevice() {
	d := newServer(0)
	require.NoError(s.T(), d.CheckError())
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceTestSuite))
}
