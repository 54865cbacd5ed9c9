package export

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrForeignKeyViolation is returned when the written database fails its FK check
var ErrForeignKeyViolation = errors.New("output database foreign key check failed")

// Counts holds the row counts of a written output database
type Counts struct {
	Routes                int `json:"routes"`
	Stations              int `json:"stations"`
	RouteServings         int `json:"route_servings"`
	StationConnections    int `json:"station_connections"`
	RouteServingsEnriched int `json:"route_servings_enriched"`
}

// SchemaSQL returns the embedded output schema
func SchemaSQL() string {
	return schemaSQL
}

// WriteSQLite writes t into a fresh SQLite database at path and returns the
// row counts read back from it. The database is built in the staging file of
// path and only moved into place once it passes validation.
// now is stored as updated_at on every route and station.
func WriteSQLite(ctx context.Context, path string, t *models.Topology, now time.Time) (Counts, error) {
	counts, err := StageSQLite(ctx, path, t, now)
	if err != nil {
		return Counts{}, err
	}
	if err := Commit(path); err != nil {
		return Counts{}, err
	}
	return counts, nil
}

// StageSQLite builds and validates the database of t in the staging file of
// path without moving it into place. The staging file is removed on failure.
func StageSQLite(ctx context.Context, path string, t *models.Topology, now time.Time) (Counts, error) {
	tmp := StagingPath(path)
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return Counts{}, fmt.Errorf("failed to remove stale %s: %w", tmp, err)
	}

	counts, err := buildSQLite(ctx, tmp, t, now)
	if err != nil {
		os.Remove(tmp)
		os.Remove(tmp + "-journal")
		return Counts{}, err
	}
	return counts, nil
}

func buildSQLite(ctx context.Context, path string, t *models.Topology, now time.Time) (Counts, error) {
	conn, err := openOutput(path)
	if err != nil {
		return Counts{}, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return Counts{}, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertTopology(ctx, conn, t, now.UTC().Format(time.RFC3339)); err != nil {
		return Counts{}, err
	}

	counts, err := validateOutput(ctx, conn)
	if err != nil {
		return Counts{}, err
	}

	logger.Debug("Wrote output database", "path", path, "stations", counts.Stations, "connections", counts.StationConnections)
	return counts, nil
}

// ValidateSQLite re-opens a written output database, checks its foreign keys
// and returns its row counts
func ValidateSQLite(ctx context.Context, path string) (Counts, error) {
	conn, err := openOutput(path)
	if err != nil {
		return Counts{}, err
	}
	defer conn.Close()

	return validateOutput(ctx, conn)
}

func openOutput(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open output database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping output database: %w", err)
	}

	return conn, nil
}

func insertTopology(ctx context.Context, conn *sql.DB, t *models.Topology, updatedAt string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	routeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO routes (
		  identifier, name, hex_color, transport_type, route_type,
		  description, operator, source_line_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare routes insert: %w", err)
	}
	defer routeStmt.Close()

	for _, r := range t.Routes {
		if _, err := routeStmt.ExecContext(ctx,
			r.ID, r.Name, r.HexColor, string(r.TransportType), string(r.RouteType),
			r.Description, r.Operator, r.SourceLineKey, updatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert route %s: %w", r.ID, err)
		}
	}

	stationStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (
		  identifier, name, latitude, longitude, types_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare stations insert: %w", err)
	}
	defer stationStmt.Close()

	for _, s := range t.Stations {
		types, err := typesJSON(s.Types)
		if err != nil {
			return err
		}
		if _, err := stationStmt.ExecContext(ctx, s.ID, s.Name, s.Lat, s.Lon, types, updatedAt); err != nil {
			return fmt.Errorf("failed to insert station %s: %w", s.ID, err)
		}
	}

	servingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO route_servings (
		  route_identifier, station_identifier, sequence, is_terminus
		) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare route_servings insert: %w", err)
	}
	defer servingStmt.Close()

	for _, sv := range t.Servings {
		terminus := 0
		if sv.IsTerminus {
			terminus = 1
		}
		if _, err := servingStmt.ExecContext(ctx, sv.RouteID, sv.StationID, sv.Sequence, terminus); err != nil {
			return fmt.Errorf("failed to insert serving %s/%d: %w", sv.RouteID, sv.Sequence, err)
		}
	}

	connStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO station_connections (
		  from_identifier, to_identifier, distance
		) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare station_connections insert: %w", err)
	}
	defer connStmt.Close()

	for _, c := range t.Connections {
		if _, err := connStmt.ExecContext(ctx, c.From, c.To, c.Distance); err != nil {
			return fmt.Errorf("failed to insert connection %s->%s: %w", c.From, c.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func validateOutput(ctx context.Context, conn *sql.DB) (Counts, error) {
	var counts Counts
	targets := []struct {
		table string
		dest  *int
	}{
		{"routes", &counts.Routes},
		{"stations", &counts.Stations},
		{"route_servings", &counts.RouteServings},
		{"station_connections", &counts.StationConnections},
		{"route_servings_enriched", &counts.RouteServingsEnriched},
	}

	for _, target := range targets {
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+target.table).Scan(target.dest); err != nil {
			return Counts{}, fmt.Errorf("failed to count %s: %w", target.table, err)
		}
	}

	rows, err := conn.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return Counts{}, fmt.Errorf("failed to run foreign key check: %w", err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		violations++
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("failed to run foreign key check: %w", err)
	}
	if violations > 0 {
		return Counts{}, fmt.Errorf("%w: %d violation(s)", ErrForeignKeyViolation, violations)
	}

	return counts, nil
}

func typesJSON(types []models.TransportType) (string, error) {
	if types == nil {
		types = []models.TransportType{}
	}
	data, err := json.Marshal(types)
	if err != nil {
		return "", fmt.Errorf("failed to marshal station types: %w", err)
	}
	return string(data), nil
}
