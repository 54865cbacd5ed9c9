package models

// TransportType is the inferred mode of a route
type TransportType string

const (
	TransportMetro     TransportType = "Metro"
	TransportUrbanRail TransportType = "UrbanRail"
	TransportTram      TransportType = "Tram"
	TransportBus       TransportType = "Bus"
	TransportTrain     TransportType = "Train"
)

// RouteType describes the shape of a route's stop sequence
type RouteType string

const (
	RouteLinear     RouteType = "Linear"
	RouteCircular   RouteType = "Circular"
	RouteOutAndBack RouteType = "OutAndBack"
)

// NIMBY Rails export rows

// StationRow represents a row from the stations table
type StationRow struct {
	Key  string
	Name string
	Lon  float64
	Lat  float64
}

// LineRow represents a row from the lines table
type LineRow struct {
	Key   string
	Name  string
	Code  string
	Color *string
}

// StopRow represents a row from the line_stops table
type StopRow struct {
	LineKey      string
	Index        int
	StationKey   string
	ArrivalS     *int
	DepartureS   *int
	LegDistanceM *float64
}

// Snapshot holds the raw rows of one export.
// StopsByLine must be ordered by stop index within each line.
// Lines is nil for a station-only export.
type Snapshot struct {
	Stations    []StationRow
	Lines       []LineRow
	StopsByLine map[string][]StopRow
}

// KeyedName pairs a source key with the display name it should be slugged from
type KeyedName struct {
	Key  string
	Name string
}

// Canonical entities

// Station is a station with its canonical identifier
type Station struct {
	ID    string          `json:"identifier"`
	Name  string          `json:"name"`
	Lat   float64         `json:"latitude"`
	Lon   float64         `json:"longitude"`
	Types []TransportType `json:"types,omitempty"`
}

// Connection is an adjacency between two stations.
// Distance is in metres and always >= 1.
type Connection struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Distance int    `json:"distance"`
}

// Route is a line with its canonical identifier and inferred classification
type Route struct {
	ID            string        `json:"identifier"`
	Name          string        `json:"name"`
	HexColor      string        `json:"hex_color"`
	TransportType TransportType `json:"transport_type"`
	RouteType     RouteType     `json:"route_type"`
	Description   string        `json:"description"`
	Operator      string        `json:"operator"`
	SourceLineKey string        `json:"source_line_id"`
}

// Serving links a route to a station at a 1-based stop position
type Serving struct {
	RouteID    string `json:"route"`
	StationID  string `json:"station"`
	Sequence   int    `json:"sequence"`
	IsTerminus bool   `json:"is_terminus"`
}

// BuildStats counts the stop references dropped while building
type BuildStats struct {
	DanglingStops int `json:"dangling_stops"`
	SelfLoops     int `json:"self_loops"`
}

// Topology is the canonical model derived from one snapshot
type Topology struct {
	Stations    []Station    `json:"stations"`
	Connections []Connection `json:"connections"`
	Routes      []Route      `json:"routes,omitempty"`
	Servings    []Serving    `json:"servings,omitempty"`
	Directed    bool         `json:"directed"`
	Extended    bool         `json:"extended"`
	Stats       BuildStats   `json:"stats"`
}

// Neighbour is a station reachable over one connection
type Neighbour struct {
	Station  Station `json:"station"`
	Distance int     `json:"distance"`
}

// NearbyStation is a station with its distance to a query point
type NearbyStation struct {
	Station  Station `json:"station"`
	Distance int     `json:"distance"`
}

// Path is the shortest sequence of connections between two stations
type Path struct {
	From          string       `json:"from"`
	To            string       `json:"to"`
	Stations      []Station    `json:"stations"`
	Connections   []Connection `json:"connections"`
	TotalDistance int          `json:"total_distance"`
}
