package graph

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"github.com/passbi/passbi_topology/internal/models"
)

const maxExploredStations = 200000

var (
	// ErrStationNotFound is returned when an endpoint is not in the graph
	ErrStationNotFound = errors.New("station not found")
	// ErrNoPath is returned when the endpoints are not connected
	ErrNoPath = errors.New("no path found")
)

// ShortestPath finds the path with the lowest total distance between two
// stations. Ties are broken by station identifier so results are stable.
func (g *InMemoryGraph) ShortestPath(ctx context.Context, from, to string) (*models.Path, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.stations[from]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, from)
	}
	if _, ok := g.stations[to]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, to)
	}

	openSet := &PriorityQueue{}
	heap.Init(openSet)
	heap.Push(openSet, &searchState{stationID: from})

	best := map[string]int{from: 0}
	prev := make(map[string]models.Connection)
	settled := make(map[string]bool)
	explored := 0

	for openSet.Len() > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if explored > maxExploredStations {
			return nil, fmt.Errorf("explored too many stations (%d): %w", explored, ErrNoPath)
		}

		current := heap.Pop(openSet).(*searchState)
		if settled[current.stationID] {
			continue
		}
		settled[current.stationID] = true
		explored++

		if current.stationID == to {
			return g.buildPath(from, to, prev, current.distance), nil
		}

		for _, c := range g.adjacency[current.stationID] {
			if settled[c.To] {
				continue
			}

			tentative := current.distance + c.Distance
			if existing, ok := best[c.To]; ok && tentative >= existing {
				continue
			}

			best[c.To] = tentative
			prev[c.To] = c
			heap.Push(openSet, &searchState{stationID: c.To, distance: tentative})
		}
	}

	return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
}

// buildPath walks the predecessor links back from to
func (g *InMemoryGraph) buildPath(from, to string, prev map[string]models.Connection, total int) *models.Path {
	var connections []models.Connection
	for at := to; at != from; {
		c := prev[at]
		connections = append(connections, c)
		at = c.From
	}

	for i, j := 0, len(connections)-1; i < j; i, j = i+1, j-1 {
		connections[i], connections[j] = connections[j], connections[i]
	}

	stations := make([]models.Station, 0, len(connections)+1)
	stations = append(stations, g.stations[from])
	for _, c := range connections {
		stations = append(stations, g.stations[c.To])
	}

	if connections == nil {
		connections = []models.Connection{}
	}

	return &models.Path{
		From:          from,
		To:            to,
		Stations:      stations,
		Connections:   connections,
		TotalDistance: total,
	}
}

// searchState is an entry of the open set
type searchState struct {
	stationID string
	distance  int
	index     int // for heap
}

// PriorityQueue implements heap.Interface ordered by distance then station id
type PriorityQueue []*searchState

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].distance != pq[j].distance {
		return pq[i].distance < pq[j].distance
	}
	return pq[i].stationID < pq[j].stationID
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	state := x.(*searchState)
	state.index = n
	*pq = append(*pq, state)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	state := old[n-1]
	old[n-1] = nil
	state.index = -1
	*pq = old[0 : n-1]
	return state
}
