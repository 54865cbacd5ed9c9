package nimby

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/models"
	_ "modernc.org/sqlite"
)

// ErrMissingTables is returned when the export lacks a required table
var ErrMissingTables = errors.New("input database missing required tables")

// RequiredTables lists the tables an export must contain
func RequiredTables(extended bool) []string {
	if extended {
		return []string{"line_stops", "lines", "stations"}
	}
	return []string{"line_stops", "stations"}
}

// SQLiteSource reads a NIMBY Rails SQLite export
type SQLiteSource struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens an existing export read-only
func OpenSQLite(path string) (*SQLiteSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open input database: %s is a directory", path)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open input database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping input database: %w", err)
	}

	logger.Debug("Opened input database", "path", path)
	return &SQLiteSource{conn: conn, path: path}, nil
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	return s.conn.Close()
}

// ValidateSchema checks that every required table exists
func (s *SQLiteSource) ValidateSchema(ctx context.Context, extended bool) error {
	rows, err := s.conn.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	var missing []string
	for _, table := range RequiredTables(extended) {
		if !existing[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingTables, strings.Join(missing, ", "))
	}

	return nil
}

// Load reads every row of the export into a snapshot.
// Lines is only populated (and non-nil) when extended is true.
func (s *SQLiteSource) Load(ctx context.Context, extended bool) (models.Snapshot, error) {
	var snap models.Snapshot

	stations, err := s.loadStations(ctx)
	if err != nil {
		return snap, err
	}
	snap.Stations = stations

	if extended {
		lines, err := s.loadLines(ctx)
		if err != nil {
			return snap, err
		}
		snap.Lines = lines
	}

	stops, err := s.loadStops(ctx, extended)
	if err != nil {
		return snap, err
	}
	snap.StopsByLine = GroupStops(stops)

	logger.Info("Loaded export",
		"stations", len(snap.Stations),
		"lines", len(snap.Lines),
		"stops", len(stops),
	)

	return snap, nil
}

func (s *SQLiteSource) loadStations(ctx context.Context) ([]models.StationRow, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT station_id, name, lon, lat FROM stations")
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []models.StationRow
	for rows.Next() {
		var st models.StationRow
		var name sql.NullString
		if err := rows.Scan(&st.Key, &name, &st.Lon, &st.Lat); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		st.Name = name.String
		stations = append(stations, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stations: %w", err)
	}

	return stations, nil
}

func (s *SQLiteSource) loadLines(ctx context.Context) ([]models.LineRow, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT line_id, name, code, color FROM lines")
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	lines := make([]models.LineRow, 0)
	for rows.Next() {
		var line models.LineRow
		var name, code, color sql.NullString
		if err := rows.Scan(&line.Key, &name, &code, &color); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		line.Name = name.String
		line.Code = code.String
		if color.Valid {
			c := color.String
			line.Color = &c
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}

	return lines, nil
}

func (s *SQLiteSource) loadStops(ctx context.Context, extended bool) ([]models.StopRow, error) {
	query := "SELECT line_id, stop_index, station_id FROM line_stops ORDER BY line_id, stop_index"
	if extended {
		query = `SELECT line_id, stop_index, station_id, arrival_s, departure_s, leg_distance_m
			FROM line_stops
			ORDER BY line_id, stop_index`
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query line_stops: %w", err)
	}
	defer rows.Close()

	var stops []models.StopRow
	for rows.Next() {
		var stop models.StopRow
		if extended {
			var arrival, departure sql.NullInt64
			var leg sql.NullFloat64
			if err := rows.Scan(&stop.LineKey, &stop.Index, &stop.StationKey, &arrival, &departure, &leg); err != nil {
				return nil, fmt.Errorf("failed to scan line stop: %w", err)
			}
			stop.ArrivalS = intPtr(arrival)
			stop.DepartureS = intPtr(departure)
			if leg.Valid {
				v := leg.Float64
				stop.LegDistanceM = &v
			}
		} else {
			if err := rows.Scan(&stop.LineKey, &stop.Index, &stop.StationKey); err != nil {
				return nil, fmt.Errorf("failed to scan line stop: %w", err)
			}
		}
		stops = append(stops, stop)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line_stops: %w", err)
	}

	return stops, nil
}

// GroupStops groups stop rows by line, ordered by stop index within each line
func GroupStops(stops []models.StopRow) map[string][]models.StopRow {
	byLine := make(map[string][]models.StopRow)
	for _, st := range stops {
		byLine[st.LineKey] = append(byLine[st.LineKey], st)
	}

	for _, lineStops := range byLine {
		sort.SliceStable(lineStops, func(i, j int) bool {
			return lineStops[i].Index < lineStops[j].Index
		})
	}

	return byLine
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
