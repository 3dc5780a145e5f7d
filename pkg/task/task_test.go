package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TaskTestSuite struct {
	suite.Suite
}

func (s *TaskTestSuite) TestNewSetsLifeTimeToSpan() {
	tk := New(1, Process, 7, 2, 3, 4)
	assert.Equal(s.T(), 4, tk.LifeTime)
	assert.Equal(s.T(), 7, tk.UserID)
	assert.False(s.T(), tk.IsAllocated())
}

func (s *TaskTestSuite) TestSetProviderRoles() {
	tk := New(1, Process, 0, 1, 1, 1)
	require.NoError(s.T(), tk.SetProvider(0, 10))
	require.NoError(s.T(), tk.SetProvider(1, 20))
	require.NoError(s.T(), tk.SetProvider(2, 30))
	require.NoError(s.T(), tk.SetProvider(2, 31))

	compute, _ := tk.Provider(0)
	filestore, _ := tk.Provider(1)
	assert.Equal(s.T(), 10, compute)
	assert.Equal(s.T(), 20, filestore)
	assert.Equal(s.T(), []int{30, 31}, tk.Depositories())
	assert.True(s.T(), tk.IsAllocated())

	err := tk.SetProvider(3, 1)
	require.Error(s.T(), err)
}

func (s *TaskTestSuite) TestDesktopBandwidthOnlyNonzeroForDesktop() {
	process := New(1, Process, 0, 1, 1, 1)
	assert.Equal(s.T(), 0.0, process.Bandwidth(0))

	desktop := New(2, Desktop, 0, 1, 1, 1)
	desktop.DesktopBW = 4
	assert.Equal(s.T(), 4.0, desktop.Bandwidth(0))
	assert.Equal(s.T(), 4.0, desktop.Bandwidth(1))
	assert.Equal(s.T(), 0.0, desktop.Bandwidth(2))
}

func (s *TaskTestSuite) TestUtilityIsLinearInEachQoSInput() {
	tk := New(1, Process, 0, 2, 3, 5)
	tk.QoS = [7]float64{-1, -2, 3, -4, 5, 6, 7}

	base := tk.Utility(0, 0, 0, 0)
	withDelay := tk.Utility(10, 0, 0, 0)
	assert.InDelta(s.T(), base+tk.QoS[WStartDelay]*10, withDelay, 1e-9)

	withSpeed := tk.Utility(0, 0, 2, 0)
	assert.InDelta(s.T(), base+tk.QoS[WSpeed]*2, withSpeed, 1e-9)
}

func (s *TaskTestSuite) TestStepDecrementsLifeTime() {
	tk := New(1, Process, 0, 1, 1, 2)
	tk.Step()
	assert.Equal(s.T(), 1, tk.LifeTime)
	tk.Step()
	assert.Equal(s.T(), 0, tk.LifeTime)
}

func TestTaskSuite(t *testing.T) {
	suite.Run(t, new(TaskTestSuite))
}
