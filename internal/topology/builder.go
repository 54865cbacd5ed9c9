package topology

import (
	"sort"

	"github.com/passbi/passbi_topology/internal/models"
)

const (
	stationPrefix = "station"
	routePrefix   = "route"
)

// Options configures a build
type Options struct {
	// Directed emits both a->b and b->a for every adjacency
	Directed bool
	// Operator is attached to every route
	Operator string
}

type stationPair struct {
	a, b string
}

// builder accumulates the canonical entities of a single Build call
type builder struct {
	stations   map[string]models.StationRow // source key -> row
	stationIDs map[string]string            // source key -> identifier
	distances  map[stationPair]int          // unordered identifier pair -> min distance
	types      map[string]map[models.TransportType]bool
	stats      models.BuildStats
}

// Build derives the canonical topology from an export snapshot.
// When in.Lines is non-nil routes and servings are derived as well and only
// the listed lines contribute; otherwise every line in StopsByLine does.
// Stops pointing at unknown stations are skipped and counted, never fatal.
func Build(in models.Snapshot, opts Options) *models.Topology {
	b := &builder{
		stations:  make(map[string]models.StationRow, len(in.Stations)),
		distances: make(map[stationPair]int),
		types:     make(map[string]map[models.TransportType]bool),
	}

	for _, s := range in.Stations {
		b.stations[s.Key] = s
	}

	pairs := make([]models.KeyedName, 0, len(b.stations))
	for _, s := range b.stations {
		pairs = append(pairs, models.KeyedName{Key: s.Key, Name: s.Name})
	}
	b.stationIDs = AssignIdentifiers(pairs, stationPrefix)

	topo := &models.Topology{
		Directed: opts.Directed,
		Extended: in.Lines != nil,
	}

	if topo.Extended {
		topo.Routes, topo.Servings = b.buildRoutes(in, opts.Operator)
	} else {
		lineKeys := make([]string, 0, len(in.StopsByLine))
		for key := range in.StopsByLine {
			lineKeys = append(lineKeys, key)
		}
		sort.Strings(lineKeys)

		for _, key := range lineKeys {
			stops := in.StopsByLine[key]
			b.countDangling(stops)
			b.connect(stops)
		}
	}

	topo.Stations = b.canonicalStations(topo.Extended)
	topo.Connections = b.connections(opts.Directed)
	topo.Stats = b.stats

	return topo
}

// buildRoutes derives routes, servings and station types, and feeds each
// line's stops into the adjacency
func (b *builder) buildRoutes(in models.Snapshot, operator string) ([]models.Route, []models.Serving) {
	pairs := make([]models.KeyedName, 0, len(in.Lines))
	for _, l := range in.Lines {
		pairs = append(pairs, models.KeyedName{Key: l.Key, Name: l.Name})
	}
	routeIDs := AssignIdentifiers(pairs, routePrefix)

	lines := make([]models.LineRow, len(in.Lines))
	copy(lines, in.Lines)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Key < lines[j].Key
	})

	routes := make([]models.Route, 0, len(lines))
	var servings []models.Serving
	seen := make(map[string]bool, len(lines))

	for _, line := range lines {
		if seen[line.Key] {
			continue
		}
		seen[line.Key] = true

		stops := in.StopsByLine[line.Key]
		routeID := routeIDs[line.Key]
		transport := InferTransportType(line.Code, line.Name)

		b.countDangling(stops)
		served := b.knownStops(stops)

		sequence := make([]string, len(served))
		for i, st := range served {
			sequence[i] = st.StationKey
		}

		routes = append(routes, models.Route{
			ID:            routeID,
			Name:          RouteName(line.Code, line.Name),
			HexColor:      NormalizeHexColor(line.Color),
			TransportType: transport,
			RouteType:     InferRouteShape(sequence),
			Description:   line.Name,
			Operator:      operator,
			SourceLineKey: line.Key,
		})

		for i, st := range served {
			stationID := b.stationIDs[st.StationKey]
			servings = append(servings, models.Serving{
				RouteID:    routeID,
				StationID:  stationID,
				Sequence:   i + 1,
				IsTerminus: i == 0 || i == len(served)-1,
			})

			if b.types[stationID] == nil {
				b.types[stationID] = make(map[models.TransportType]bool)
			}
			b.types[stationID][transport] = true
		}

		b.connect(stops)
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ID < routes[j].ID
	})
	sortServings(servings)

	return routes, servings
}

// connect records the distance between every pair of consecutive stops
func (b *builder) connect(stops []models.StopRow) {
	for i := 0; i < len(stops)-1; i++ {
		from, to := stops[i], stops[i+1]

		if from.StationKey == to.StationKey {
			b.stats.SelfLoops++
			continue
		}

		sa, okA := b.stations[from.StationKey]
		sb, okB := b.stations[to.StationKey]
		if !okA || !okB {
			continue
		}

		fa, fb := b.stationIDs[from.StationKey], b.stationIDs[to.StationKey]
		if fa == fb {
			b.stats.SelfLoops++
			continue
		}
		if fb < fa {
			fa, fb = fb, fa
		}

		dist := Distance(sa.Lat, sa.Lon, sb.Lat, sb.Lon)
		key := stationPair{a: fa, b: fb}
		if current, ok := b.distances[key]; !ok || dist < current {
			b.distances[key] = dist
		}
	}
}

func (b *builder) countDangling(stops []models.StopRow) {
	for _, st := range stops {
		if _, ok := b.stations[st.StationKey]; !ok {
			b.stats.DanglingStops++
		}
	}
}

func (b *builder) knownStops(stops []models.StopRow) []models.StopRow {
	known := make([]models.StopRow, 0, len(stops))
	for _, st := range stops {
		if _, ok := b.stations[st.StationKey]; ok {
			known = append(known, st)
		}
	}
	return known
}

func (b *builder) canonicalStations(withTypes bool) []models.Station {
	stations := make([]models.Station, 0, len(b.stations))
	for key, s := range b.stations {
		station := models.Station{
			ID:   b.stationIDs[key],
			Name: s.Name,
			Lat:  s.Lat,
			Lon:  s.Lon,
		}

		if withTypes {
			station.Types = sortedTypes(b.types[station.ID])
		}

		stations = append(stations, station)
	}

	sort.Slice(stations, func(i, j int) bool {
		return stations[i].ID < stations[j].ID
	})

	return stations
}

func (b *builder) connections(directed bool) []models.Connection {
	connections := make([]models.Connection, 0, len(b.distances))
	for pair, dist := range b.distances {
		connections = append(connections, models.Connection{From: pair.a, To: pair.b, Distance: dist})
		if directed {
			connections = append(connections, models.Connection{From: pair.b, To: pair.a, Distance: dist})
		}
	}

	sort.Slice(connections, func(i, j int) bool {
		if connections[i].From != connections[j].From {
			return connections[i].From < connections[j].From
		}
		return connections[i].To < connections[j].To
	})

	return connections
}

// sortedTypes returns the observed types in name order, Train when none were seen
func sortedTypes(set map[models.TransportType]bool) []models.TransportType {
	if len(set) == 0 {
		return []models.TransportType{models.TransportTrain}
	}

	types := make([]models.TransportType, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i] < types[j]
	})

	return types
}

func sortServings(servings []models.Serving) {
	sort.Slice(servings, func(i, j int) bool {
		if servings[i].RouteID != servings[j].RouteID {
			return servings[i].RouteID < servings[j].RouteID
		}
		return servings[i].Sequence < servings[j].Sequence
	})
}
