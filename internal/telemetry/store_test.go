package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	db    *DB
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	path := filepath.Join(s.T().TempDir(), "telemetry.db")
	db, err := Open(path)
	require.NoError(s.T(), err)
	s.db = db
	s.store = NewStore(db)
}

func (s *StoreTestSuite) TearDownTest() {
	require.NoError(s.T(), s.db.Close())
}

func (s *StoreTestSuite) TestSaveAndGetEpisode() {
	ep := &Episode{ID: "ep-1", CloudModel: 0, M: 3, N: 10, Seed: 42, Slots: 100, DropRate: 0.12, Jilter: 1.5}
	require.NoError(s.T(), s.store.SaveEpisode(ep))

	got, err := s.store.GetEpisode("ep-1")
	require.NoError(s.T(), err)
	s.Equal(ep.M, got.M)
	s.InDelta(ep.DropRate, got.DropRate, 1e-9)
	s.InDelta(ep.Jilter, got.Jilter, 1e-9)
}

func (s *StoreTestSuite) TestListEpisodesOrdersMostRecentFirst() {
	first := &Episode{ID: "ep-a", CreatedAt: time.Unix(1000, 0)}
	second := &Episode{ID: "ep-b", CreatedAt: time.Unix(2000, 0)}
	require.NoError(s.T(), s.store.SaveEpisode(first))
	require.NoError(s.T(), s.store.SaveEpisode(second))

	eps, err := s.store.ListEpisodes()
	require.NoError(s.T(), err)
	require.Len(s.T(), eps, 2)
	s.Equal("ep-b", eps[0].ID)
}

func (s *StoreTestSuite) TestSlotSnapshotsOrderedBySlot() {
	ep := &Episode{ID: "ep-slots"}
	require.NoError(s.T(), s.store.SaveEpisode(ep))

	snaps := []SlotSnapshot{
		{EpisodeID: "ep-slots", Slot: 2, TasksNum: 5},
		{EpisodeID: "ep-slots", Slot: 0, TasksNum: 3},
		{EpisodeID: "ep-slots", Slot: 1, TasksNum: 4},
	}
	require.NoError(s.T(), s.store.BatchSaveSlotSnapshots(snaps))

	got, err := s.store.GetSlotSnapshots("ep-slots")
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 3)
	s.Equal(0, got[0].Slot)
	s.Equal(1, got[1].Slot)
	s.Equal(2, got[2].Slot)
}

func (s *StoreTestSuite) TestGetEpisodeNotFound() {
	_, err := s.store.GetEpisode("missing")
	s.Error(err)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
