package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/passbi/passbi_topology/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTopology(directed bool) *models.Topology {
	return &models.Topology{
		Stations: []models.Station{
			{ID: "a", Name: "Alpha", Lat: 52.00, Lon: 13.00},
			{ID: "b", Name: "Bravo", Lat: 52.01, Lon: 13.00},
			{ID: "c", Name: "Charlie", Lat: 52.02, Lon: 13.00},
			{ID: "d", Name: "Delta", Lat: 48.00, Lon: 11.00},
		},
		Connections: []models.Connection{
			{From: "a", To: "b", Distance: 10},
			{From: "a", To: "c", Distance: 50},
			{From: "b", To: "c", Distance: 10},
		},
		Routes: []models.Route{{ID: "ring", Name: "U1"}},
		Servings: []models.Serving{
			{RouteID: "ring", StationID: "b", Sequence: 2},
			{RouteID: "ring", StationID: "a", Sequence: 1, IsTerminus: true},
			{RouteID: "ring", StationID: "c", Sequence: 3, IsTerminus: true},
		},
		Directed: directed,
		Extended: true,
	}
}

func loadedGraph(t *testing.T, directed bool) *InMemoryGraph {
	t.Helper()
	g := New()
	require.NoError(t, g.Load(sampleTopology(directed)))
	return g
}

func TestLoad(t *testing.T) {
	g := New()
	assert.False(t, g.IsLoaded())
	assert.Nil(t, g.Topology())

	require.NoError(t, g.Load(sampleTopology(false)))
	assert.True(t, g.IsLoaded())
	assert.False(t, g.LoadedAt().IsZero())

	s, ok := g.Station("b")
	require.True(t, ok)
	assert.Equal(t, "Bravo", s.Name)

	_, ok = g.Station("zulu")
	assert.False(t, ok)

	r, ok := g.Route("ring")
	require.True(t, ok)
	assert.Equal(t, "U1", r.Name)

	servings := g.Servings("ring")
	require.Len(t, servings, 3)
	assert.Equal(t, "a", servings[0].StationID)
	assert.Equal(t, "c", servings[2].StationID)
	assert.Empty(t, g.Servings("unknown"))
}

func TestNeighbours(t *testing.T) {
	t.Run("Undirected connections are traversable both ways", func(t *testing.T) {
		g := loadedGraph(t, false)

		n := g.Neighbours("c")
		require.Len(t, n, 2)
		assert.Equal(t, "a", n[0].Station.ID)
		assert.Equal(t, 50, n[0].Distance)
		assert.Equal(t, "b", n[1].Station.ID)
		assert.Equal(t, 10, n[1].Distance)
	})

	t.Run("Directed connections only go forward", func(t *testing.T) {
		g := loadedGraph(t, true)

		assert.Empty(t, g.Neighbours("c"))
		assert.Len(t, g.Neighbours("a"), 2)
	})

	t.Run("Isolated station", func(t *testing.T) {
		g := loadedGraph(t, false)
		assert.Empty(t, g.Neighbours("d"))
	})
}

func TestVersion(t *testing.T) {
	a := loadedGraph(t, false)
	b := loadedGraph(t, false)
	c := loadedGraph(t, true)

	assert.NotEmpty(t, a.Version())
	assert.Equal(t, a.Version(), b.Version())
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestSnapshot(t *testing.T) {
	g := New()
	topo, version := g.Snapshot()
	assert.Nil(t, topo)
	assert.Empty(t, version)

	require.NoError(t, g.Load(sampleTopology(false)))
	topo, version = g.Snapshot()
	assert.Same(t, g.Topology(), topo)
	assert.Equal(t, g.Version(), version)

	require.NoError(t, g.Load(sampleTopology(true)))
	topo, version = g.Snapshot()
	assert.True(t, topo.Directed)
	assert.Equal(t, g.Version(), version)
}

func TestFindNearestStations(t *testing.T) {
	g := loadedGraph(t, false)

	nearby := g.FindNearestStations(52.0001, 13.0, 5000, 2)
	require.Len(t, nearby, 2)
	assert.Equal(t, "a", nearby[0].Station.ID)
	assert.Equal(t, "b", nearby[1].Station.ID)
	assert.Less(t, nearby[0].Distance, nearby[1].Distance)

	assert.Empty(t, g.FindNearestStations(0, 0, 1000, 5))
}

type fakeLoader struct {
	topo *models.Topology
	err  error
}

func (f fakeLoader) LoadTopology(ctx context.Context) (*models.Topology, error) {
	return f.topo, f.err
}

func TestLoadFrom(t *testing.T) {
	g := New()
	require.NoError(t, g.LoadFrom(context.Background(), fakeLoader{topo: sampleTopology(false)}))
	assert.True(t, g.IsLoaded())

	boom := errors.New("connection refused")
	err := New().LoadFrom(context.Background(), fakeLoader{err: boom})
	assert.ErrorIs(t, err, boom)
}
