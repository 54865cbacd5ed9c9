package graph

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/models"
	"github.com/passbi/passbi_topology/internal/topology"
)

// TopologyLoader provides a topology from an external store
type TopologyLoader interface {
	LoadTopology(ctx context.Context) (*models.Topology, error)
}

// InMemoryGraph holds one immutable topology for fast lookups.
// Load swaps the whole snapshot; readers never see a partial one.
type InMemoryGraph struct {
	mu        sync.RWMutex
	topo      *models.Topology
	stations  map[string]models.Station
	adjacency map[string][]models.Connection // from station -> outgoing connections
	routes    map[string]models.Route
	servings  map[string][]models.Serving // route -> servings by sequence
	version   string
	loadedAt  time.Time
}

// New creates an empty graph
func New() *InMemoryGraph {
	return &InMemoryGraph{}
}

// Load replaces the served topology
func (g *InMemoryGraph) Load(t *models.Topology) error {
	version, err := fingerprint(t)
	if err != nil {
		return err
	}

	stations := make(map[string]models.Station, len(t.Stations))
	for _, s := range t.Stations {
		stations[s.ID] = s
	}

	adjacency := make(map[string][]models.Connection)
	for _, c := range t.Connections {
		adjacency[c.From] = append(adjacency[c.From], c)
		if !t.Directed {
			adjacency[c.To] = append(adjacency[c.To], models.Connection{From: c.To, To: c.From, Distance: c.Distance})
		}
	}
	for _, out := range adjacency {
		sort.Slice(out, func(i, j int) bool {
			return out[i].To < out[j].To
		})
	}

	routes := make(map[string]models.Route, len(t.Routes))
	for _, r := range t.Routes {
		routes[r.ID] = r
	}

	servings := make(map[string][]models.Serving)
	for _, sv := range t.Servings {
		servings[sv.RouteID] = append(servings[sv.RouteID], sv)
	}
	for _, list := range servings {
		sort.Slice(list, func(i, j int) bool {
			return list[i].Sequence < list[j].Sequence
		})
	}

	g.mu.Lock()
	g.topo = t
	g.stations = stations
	g.adjacency = adjacency
	g.routes = routes
	g.servings = servings
	g.version = version
	g.loadedAt = time.Now()
	g.mu.Unlock()

	logger.Info("Topology loaded into memory",
		"stations", len(t.Stations),
		"connections", len(t.Connections),
		"routes", len(t.Routes),
		"version", version,
	)

	return nil
}

// LoadFrom loads the topology provided by loader
func (g *InMemoryGraph) LoadFrom(ctx context.Context, loader TopologyLoader) error {
	startTime := time.Now()

	t, err := loader.LoadTopology(ctx)
	if err != nil {
		return fmt.Errorf("failed to load topology: %w", err)
	}

	if err := g.Load(t); err != nil {
		return err
	}

	logger.Debug("Topology load finished", "duration", time.Since(startTime))
	return nil
}

// IsLoaded returns true once a topology has been loaded
func (g *InMemoryGraph) IsLoaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topo != nil
}

// Topology returns the served topology. Callers must not modify it.
func (g *InMemoryGraph) Topology() *models.Topology {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topo
}

// Version identifies the content of the served topology
func (g *InMemoryGraph) Version() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// Snapshot returns the served topology together with its version, read under
// one lock so the pair always matches
func (g *InMemoryGraph) Snapshot() (*models.Topology, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topo, g.version
}

// LoadedAt returns when the current topology was loaded
func (g *InMemoryGraph) LoadedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loadedAt
}

// Station returns a station by identifier
func (g *InMemoryGraph) Station(id string) (models.Station, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.stations[id]
	return s, ok
}

// Neighbours returns the stations reachable from id over one connection
func (g *InMemoryGraph) Neighbours(id string) []models.Neighbour {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := g.adjacency[id]
	neighbours := make([]models.Neighbour, 0, len(out))
	for _, c := range out {
		neighbours = append(neighbours, models.Neighbour{
			Station:  g.stations[c.To],
			Distance: c.Distance,
		})
	}
	return neighbours
}

// Route returns a route by identifier
func (g *InMemoryGraph) Route(id string) (models.Route, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.routes[id]
	return r, ok
}

// Servings returns the stops of a route in sequence order
func (g *InMemoryGraph) Servings(routeID string) []models.Serving {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.servings[routeID]
}

// FindNearestStations returns up to limit stations within radius metres of
// the given point, nearest first
func (g *InMemoryGraph) FindNearestStations(lat, lon float64, radius, limit int) []models.NearbyStation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var nearby []models.NearbyStation
	for _, s := range g.stations {
		dist := topology.Distance(lat, lon, s.Lat, s.Lon)
		if dist <= radius {
			nearby = append(nearby, models.NearbyStation{Station: s, Distance: dist})
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		if nearby[i].Distance != nearby[j].Distance {
			return nearby[i].Distance < nearby[j].Distance
		}
		return nearby[i].Station.ID < nearby[j].Station.ID
	})

	if len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby
}

// fingerprint hashes the canonical JSON form of t
func fingerprint(t *models.Topology) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint topology: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8]), nil
}
