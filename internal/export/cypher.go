package export

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/passbi_topology/internal/models"
)

// CypherMeta is written into the script header
type CypherMeta struct {
	GeneratedAt time.Time
	RunID       string
}

// NewCypherMeta stamps a script generated at now with a fresh run id
func NewCypherMeta(now time.Time) CypherMeta {
	return CypherMeta{
		GeneratedAt: now.UTC(),
		RunID:       uuid.New().String(),
	}
}

var cypherSchema = []string{
	"CREATE CONSTRAINT station_identifier IF NOT EXISTS\nFOR (s:Station) REQUIRE s.identifier IS UNIQUE;",
	"CREATE CONSTRAINT route_identifier IF NOT EXISTS\nFOR (r:Route) REQUIRE r.identifier IS UNIQUE;",
	"CREATE INDEX station_name IF NOT EXISTS\nFOR (s:Station) ON (s.name);",
	"CREATE INDEX station_location IF NOT EXISTS\nFOR (s:Station) ON (s.latitude, s.longitude);",
	"CREATE INDEX route_name IF NOT EXISTS\nFOR (r:Route) ON (r.name);",
	"CREATE INDEX serves_sequence IF NOT EXISTS\nFOR ()-[s:SERVES]-() ON (s.sequence);",
	"CREATE INDEX connects_distance IF NOT EXISTS\nFOR ()-[s:CONNECTS_TO]-() ON (s.distance);",
}

// WriteCypher writes t as an idempotent Neo4j import script.
// Route and SERVES blocks are only written for extended topologies. SERVES
// relationships are keyed by sequence so a station visited twice by the same
// route keeps both stops.
func WriteCypher(w io.Writer, t *models.Topology, meta CypherMeta) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "// Auto-generated NIMBY Rails topology dataset")
	fmt.Fprintf(bw, "// Generated at %s\n", meta.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(bw, "// Run %s\n\n", meta.RunID)

	for _, stmt := range cypherSchema {
		fmt.Fprintln(bw, stmt)
	}
	fmt.Fprintln(bw)

	if t.Extended {
		writeCypherRoutes(bw, t.Routes)
	}
	writeCypherStations(bw, t.Stations, t.Extended)
	writeCypherConnections(bw, t.Connections)
	if t.Extended {
		writeCypherServings(bw, t.Servings)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write cypher: %w", err)
	}
	return nil
}

func writeCypherRoutes(w *bufio.Writer, routes []models.Route) {
	sorted := append([]models.Route(nil), routes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	fmt.Fprintln(w, "UNWIND [")
	for i, r := range sorted {
		fmt.Fprintln(w, "  {")
		fmt.Fprintf(w, "    identifier: %s,\n", cypherQuote(r.ID))
		fmt.Fprintf(w, "    name: %s,\n", cypherQuote(r.Name))
		fmt.Fprintf(w, "    hexColor: %s,\n", cypherQuote(r.HexColor))
		fmt.Fprintf(w, "    transportType: %s,\n", cypherQuote(string(r.TransportType)))
		fmt.Fprintf(w, "    routeType: %s,\n", cypherQuote(string(r.RouteType)))
		fmt.Fprintf(w, "    description: %s,\n", cypherQuote(r.Description))
		fmt.Fprintf(w, "    operator: %s\n", cypherQuote(r.Operator))
		fmt.Fprint(w, "  }")
		fmt.Fprintln(w, listSeparator(i, len(sorted)))
	}
	fmt.Fprintln(w, "] AS route")
	fmt.Fprintln(w, "MERGE (r:Route {identifier: route.identifier})")
	fmt.Fprintln(w, "SET r.name = route.name,")
	fmt.Fprintln(w, "    r.hexColor = route.hexColor,")
	fmt.Fprintln(w, "    r.transportType = route.transportType,")
	fmt.Fprintln(w, "    r.routeType = route.routeType,")
	fmt.Fprintln(w, "    r.description = route.description,")
	fmt.Fprintln(w, "    r.operator = route.operator,")
	fmt.Fprintln(w, "    r.updatedAt = datetime();")
	fmt.Fprintln(w)
}

func writeCypherStations(w *bufio.Writer, stations []models.Station, withTypes bool) {
	sorted := append([]models.Station(nil), stations...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	fmt.Fprintln(w, "UNWIND [")
	for i, s := range sorted {
		fmt.Fprintln(w, "  {")
		fmt.Fprintf(w, "    identifier: %s,\n", cypherQuote(s.ID))
		fmt.Fprintf(w, "    name: %s,\n", cypherQuote(s.Name))
		fmt.Fprintf(w, "    latitude: %.7f,\n", s.Lat)
		if withTypes {
			fmt.Fprintf(w, "    longitude: %.7f,\n", s.Lon)
			fmt.Fprintf(w, "    types: %s\n", cypherTypes(s.Types))
		} else {
			fmt.Fprintf(w, "    longitude: %.7f\n", s.Lon)
		}
		fmt.Fprint(w, "  }")
		fmt.Fprintln(w, listSeparator(i, len(sorted)))
	}
	fmt.Fprintln(w, "] AS station")
	fmt.Fprintln(w, "MERGE (s:Station {identifier: station.identifier})")
	fmt.Fprintln(w, "SET s.name = station.name,")
	fmt.Fprintln(w, "    s.latitude = station.latitude,")
	fmt.Fprintln(w, "    s.longitude = station.longitude,")
	if withTypes {
		fmt.Fprintln(w, "    s.types = station.types,")
	}
	fmt.Fprintln(w, "    s.updatedAt = datetime();")
	fmt.Fprintln(w)
}

func writeCypherConnections(w *bufio.Writer, connections []models.Connection) {
	fmt.Fprintln(w, "UNWIND [")
	for i, c := range connections {
		fmt.Fprintf(w, "  {from:%s, to:%s, distance:%d}", cypherQuote(c.From), cypherQuote(c.To), c.Distance)
		fmt.Fprintln(w, listSeparator(i, len(connections)))
	}
	fmt.Fprintln(w, "] AS row")
	fmt.Fprintln(w, "MATCH (s1:Station {identifier: row.from})")
	fmt.Fprintln(w, "MATCH (s2:Station {identifier: row.to})")
	fmt.Fprintln(w, "MERGE (s1)-[rel:CONNECTS_TO]->(s2)")
	fmt.Fprintln(w, "SET rel.distance = row.distance;")
	fmt.Fprintln(w)
}

func writeCypherServings(w *bufio.Writer, servings []models.Serving) {
	sorted := append([]models.Serving(nil), servings...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RouteID != sorted[j].RouteID {
			return sorted[i].RouteID < sorted[j].RouteID
		}
		return sorted[i].Sequence < sorted[j].Sequence
	})

	fmt.Fprintln(w, "UNWIND [")
	for i, s := range sorted {
		fmt.Fprintf(w, "  {route:%s, station:%s, sequence:%d, isTerminus:%t}",
			cypherQuote(s.RouteID), cypherQuote(s.StationID), s.Sequence, s.IsTerminus)
		fmt.Fprintln(w, listSeparator(i, len(sorted)))
	}
	fmt.Fprintln(w, "] AS row")
	fmt.Fprintln(w, "MATCH (r:Route {identifier: row.route})")
	fmt.Fprintln(w, "MATCH (s:Station {identifier: row.station})")
	fmt.Fprintln(w, "MERGE (r)-[rel:SERVES {sequence: row.sequence}]->(s)")
	fmt.Fprintln(w, "SET rel.isTerminus = row.isTerminus;")
}

var cypherEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func cypherQuote(value string) string {
	return "'" + cypherEscaper.Replace(value) + "'"
}

func cypherTypes(types []models.TransportType) string {
	quoted := make([]string, len(types))
	for i, t := range types {
		quoted[i] = cypherQuote(string(t))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func listSeparator(i, n int) string {
	if i < n-1 {
		return ","
	}
	return ""
}
