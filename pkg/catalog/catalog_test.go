package catalog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/openraas-sim/pkg/simerr"
)

type CatalogTestSuite struct {
	suite.Suite
	cat *Catalog
}

func (s *CatalogTestSuite) SetupTest() {
	s.cat = Build(rand.New(rand.NewSource(1)))
}

func (s *CatalogTestSuite) TestLayoutCounts() {
	assert.Len(s.T(), s.cat.LayersOfKind(OS), 3)
	assert.Len(s.T(), s.cat.LayersOfKind(Driver), 5)
	assert.Len(s.T(), s.cat.LayersOfKind(Library), 8)
	assert.Len(s.T(), s.cat.LayersOfKind(Execution), 1)
	assert.Len(s.T(), s.cat.LayersOfKind(Compatible), 1)
	assert.Len(s.T(), s.cat.AllLayers(), 18)

	assert.Len(s.T(), s.cat.AppsOfKind(Processing), 30)
	assert.Len(s.T(), s.cat.AppsOfKind(Storage), 1)
	assert.Len(s.T(), s.cat.AppsOfKind(Desktop), 20)
	assert.Len(s.T(), s.cat.AllApps(), 51)
}

func (s *CatalogTestSuite) TestStorageMarkerIsZeroSize() {
	require.NotNil(s.T(), s.cat.StorageMarker)
	assert.Equal(s.T(), 0.0, s.cat.StorageMarker.SizeMB)
	assert.False(s.T(), s.cat.StorageMarker.IsLayer)
}

func (s *CatalogTestSuite) TestHostReverseIndexInvariant() {
	layer := s.cat.LayersOfKind(OS)[0]
	require.NoError(s.T(), layer.AddHost(7))
	assert.True(s.T(), layer.HasHost(7))
	assert.Contains(s.T(), layer.Hosts(), 7)

	err := layer.AddHost(7)
	kind, ok := simerr.KindOf(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), simerr.Duplicate, kind)

	require.NoError(s.T(), layer.RemoveHost(7))
	assert.False(s.T(), layer.HasHost(7))

	err = layer.RemoveHost(7)
	kind, ok = simerr.KindOf(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), simerr.NotFound, kind)
}

func (s *CatalogTestSuite) TestNextWrapsWithinKind() {
	os := s.cat.LayersOfKind(OS)
	last := os[len(os)-1]
	wrapped := s.cat.Next(last)
	assert.Equal(s.T(), os[0].ID, wrapped.ID)
}

func (s *CatalogTestSuite) TestGetByIDUnknown() {
	_, err := s.cat.GetByID(99999)
	require.Error(s.T(), err)
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogTestSuite))
}
