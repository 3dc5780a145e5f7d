package topology

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeDevice struct {
	bw float64
}

func (f *fakeDevice) ReserveBW(bw float64) error {
	f.bw -= bw
	return nil
}
func (f *fakeDevice) ReleaseBW(bw float64) error {
	f.bw += bw
	return nil
}

type TopologyTestSuite struct {
	suite.Suite
	topo *Topology
}

func (s *TopologyTestSuite) SetupTest() {
	s.topo = New(DefaultConfig(2), rand.New(rand.NewSource(42)))
	s.topo.AddDevice(0, 0, true)
	s.topo.AddDevice(1, 0, true)
	s.topo.AddDevice(2, 1, true)
}

func (s *TopologyTestSuite) TestSelfLinkIsInfiniteFreeNoLatency() {
	state, err := s.topo.LinkState(0, 0)
	require.NoError(s.T(), err)
	assert.True(s.T(), math.IsInf(state.Speed, 1))
	assert.Equal(s.T(), 0.0, state.Latency)
	assert.Equal(s.T(), 0.0, state.Jitter)
}

func (s *TopologyTestSuite) TestReserveReleaseSymmetry() {
	d1, d2 := &fakeDevice{bw: 125}, &fakeDevice{bw: 125}
	before, _ := s.topo.LinkState(0, 1)

	require.NoError(s.T(), s.topo.ReserveBW(0, 1, 4, d1, d2))
	require.NoError(s.T(), s.topo.ReleaseBW(0, 1, 4, d1, d2))

	after, _ := s.topo.LinkState(0, 1)
	assert.InDelta(s.T(), before.Speed, after.Speed, 1e-10)
	assert.InDelta(s.T(), 125.0, d1.bw, 1e-10)
	assert.InDelta(s.T(), 125.0, d2.bw, 1e-10)
}

func (s *TopologyTestSuite) TestReserveBeyondCapacityIsNegativeError() {
	d1, d2 := &fakeDevice{bw: 1}, &fakeDevice{bw: 1}
	err := s.topo.ReserveBW(0, 1, 1e9, d1, d2)
	require.Error(s.T(), err)
}

func (s *TopologyTestSuite) TestCrossAreaReservationHitsBothBackbones() {
	d1, d2 := &fakeDevice{bw: 20}, &fakeDevice{bw: 125}
	before0 := s.topo.areas[0].Backbone.FreeBW
	before1 := s.topo.areas[1].Backbone.FreeBW

	require.NoError(s.T(), s.topo.ReserveBW(0, 2, 4, d1, d2))
	assert.Equal(s.T(), before0-4, s.topo.areas[0].Backbone.FreeBW)
	assert.Equal(s.T(), before1-4, s.topo.areas[1].Backbone.FreeBW)

	require.NoError(s.T(), s.topo.ReleaseBW(0, 2, 4, d1, d2))
	assert.InDelta(s.T(), before0, s.topo.areas[0].Backbone.FreeBW, 1e-10)
	assert.InDelta(s.T(), before1, s.topo.areas[1].Backbone.FreeBW, 1e-10)
}

func (s *TopologyTestSuite) TestStepClearsOccupiedTime() {
	_, err := s.topo.Transmit(0, 1, 1000, 0)
	require.NoError(s.T(), err)
	ot, _ := s.topo.LinkOccupiedTime(0, 1)
	assert.Greater(s.T(), ot, 0.0)

	s.topo.Step()
	ot, _ = s.topo.LinkOccupiedTime(0, 1)
	assert.Equal(s.T(), 0.0, ot)
}

func (s *TopologyTestSuite) TestTransmitQueuesBehindBacklog() {
	end1, err := s.topo.Transmit(0, 1, 1000, 0)
	require.NoError(s.T(), err)
	end2, err := s.topo.Transmit(0, 1, 1000, 0)
	require.NoError(s.T(), err)
	assert.Greater(s.T(), end2, end1)
}

func TestTopologySuite(t *testing.T) {
	suite.Run(t, new(TopologyTestSuite))
}
