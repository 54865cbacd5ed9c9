package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/passbi/passbi_topology/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyStatementsOrderParentsFirst(t *testing.T) {
	topo := &models.Topology{
		Stations: []models.Station{
			{ID: "central", Name: "Central", Types: []models.TransportType{models.TransportMetro}},
			{ID: "market", Name: "Market"},
		},
		Connections: []models.Connection{{From: "central", To: "market", Distance: 900}},
		Routes:      []models.Route{{ID: "ring", Name: "U1"}},
		Servings: []models.Serving{
			{RouteID: "ring", StationID: "central", Sequence: 1, IsTerminus: true},
		},
	}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	queries := TopologyStatements(topo, now)
	require.Len(t, queries, 5)
	assert.Contains(t, queries[0].SQL, "INSERT INTO routes")
	assert.Contains(t, queries[1].SQL, "INSERT INTO stations")
	assert.Contains(t, queries[2].SQL, "INSERT INTO stations")
	assert.Contains(t, queries[3].SQL, "INSERT INTO route_servings")
	assert.Contains(t, queries[4].SQL, "INSERT INTO station_connections")

	assert.Equal(t, []string{"Metro"}, queries[1].Args[4])
	assert.Equal(t, []string{}, queries[2].Args[4])
	assert.Equal(t, now, queries[1].Args[5])
}

func TestQueueTopologyBatchesEveryStatement(t *testing.T) {
	topo := &models.Topology{
		Stations:    []models.Station{{ID: "central"}, {ID: "market"}},
		Connections: []models.Connection{{From: "central", To: "market", Distance: 900}},
	}

	batches := QueueTopology(topo, time.Now())
	require.Len(t, batches, 1)
	assert.Equal(t, len(TopologyStatements(topo, time.Now())), batches[0].Len())
}

func TestQueueTopologySplitsBatches(t *testing.T) {
	topo := &models.Topology{}
	for i := 0; i < batchSize+500; i++ {
		topo.Stations = append(topo.Stations, models.Station{ID: fmt.Sprintf("s%d", i)})
	}

	batches := QueueTopology(topo, time.Now())
	require.Len(t, batches, 2)
	assert.Equal(t, batchSize, batches[0].Len())
	assert.Equal(t, 500, batches[1].Len())
}

func TestQueueTopologyEmpty(t *testing.T) {
	assert.Empty(t, QueueTopology(&models.Topology{}, time.Now()))
}

func TestSchemaDeclaresImportLog(t *testing.T) {
	assert.True(t, strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS import_log"))
	assert.True(t, strings.Contains(schemaSQL, "route_servings_enriched"))
}
