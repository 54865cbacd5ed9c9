package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/models"
)

const batchSize = 1000

//go:embed schema.sql
var schemaSQL string

// PublishResult describes one publish run
type PublishResult struct {
	RunID       string
	Stations    int
	Connections int
	Routes      int
	Servings    int
}

// Publisher writes finished topologies to PostgreSQL
type Publisher struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPublisher creates a new publisher
func NewPublisher(db *pgxpool.Pool) *Publisher {
	return &Publisher{db: db, now: time.Now}
}

// EnsureSchema creates the topology tables if they don't exist
func (p *Publisher) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Publish replaces the published topology with t inside one transaction and
// records the run in import_log. source names the export t was built from.
func (p *Publisher) Publish(ctx context.Context, t *models.Topology, source, operator string) (*PublishResult, error) {
	started := p.now().UTC()
	runID := uuid.New().String()

	logger.Info("Publishing topology", "run", runID, "stations", len(t.Stations), "connections", len(t.Connections))

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE route_servings, station_connections, stations, routes"); err != nil {
		return nil, fmt.Errorf("failed to clear topology: %w", err)
	}

	for i, batch := range QueueTopology(t, started) {
		if err := executeBatch(ctx, tx, batch); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", i, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO import_log (
			id, source, operator, directed, extended,
			stations, connections, routes, servings,
			dangling_stops, self_loops, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, runID, source, operator, t.Directed, t.Extended,
		len(t.Stations), len(t.Connections), len(t.Routes), len(t.Servings),
		t.Stats.DanglingStops, t.Stats.SelfLoops, started, p.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to write import log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := p.analyze(ctx); err != nil {
		logger.Warn("Failed to analyze tables", "err", err)
	}

	return &PublishResult{
		RunID:       runID,
		Stations:    len(t.Stations),
		Connections: len(t.Connections),
		Routes:      len(t.Routes),
		Servings:    len(t.Servings),
	}, nil
}

// Statement is one queued insert
type Statement struct {
	SQL  string
	Args []any
}

// TopologyStatements lists the inserts of t. Routes and stations come before
// the rows referencing them.
func TopologyStatements(t *models.Topology, updatedAt time.Time) []Statement {
	statements := make([]Statement, 0, len(t.Routes)+len(t.Stations)+len(t.Servings)+len(t.Connections))

	for _, r := range t.Routes {
		statements = append(statements, Statement{
			SQL: `
			INSERT INTO routes (identifier, name, hex_color, transport_type, route_type, description, operator, source_line_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			Args: []any{r.ID, r.Name, r.HexColor, string(r.TransportType), string(r.RouteType), r.Description, r.Operator, r.SourceLineKey, updatedAt},
		})
	}

	for _, s := range t.Stations {
		types := make([]string, len(s.Types))
		for i, tt := range s.Types {
			types[i] = string(tt)
		}
		statements = append(statements, Statement{
			SQL: `
			INSERT INTO stations (identifier, name, latitude, longitude, types, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			Args: []any{s.ID, s.Name, s.Lat, s.Lon, types, updatedAt},
		})
	}

	for _, sv := range t.Servings {
		statements = append(statements, Statement{
			SQL: `
			INSERT INTO route_servings (route_identifier, station_identifier, sequence, is_terminus)
			VALUES ($1, $2, $3, $4)
		`,
			Args: []any{sv.RouteID, sv.StationID, sv.Sequence, sv.IsTerminus},
		})
	}

	for _, c := range t.Connections {
		statements = append(statements, Statement{
			SQL: `
			INSERT INTO station_connections (from_identifier, to_identifier, distance)
			VALUES ($1, $2, $3)
		`,
			Args: []any{c.From, c.To, c.Distance},
		})
	}

	return statements
}

// QueueTopology splits the inserts of t into batches of at most batchSize
// queries
func QueueTopology(t *models.Topology, updatedAt time.Time) []*pgx.Batch {
	var batches []*pgx.Batch
	batch := &pgx.Batch{}

	for _, stmt := range TopologyStatements(t, updatedAt) {
		batch.Queue(stmt.SQL, stmt.Args...)
		if batch.Len() >= batchSize {
			batches = append(batches, batch)
			batch = &pgx.Batch{}
		}
	}

	if batch.Len() > 0 {
		batches = append(batches, batch)
	}

	return batches
}

// LoadTopology reads the published topology back
func (p *Publisher) LoadTopology(ctx context.Context) (*models.Topology, error) {
	t := &models.Topology{}

	var lastRun struct {
		directed, extended bool
	}
	err := p.db.QueryRow(ctx, `
		SELECT directed, extended FROM import_log ORDER BY finished_at DESC LIMIT 1
	`).Scan(&lastRun.directed, &lastRun.extended)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read import log: %w", err)
	}
	t.Directed = lastRun.directed
	t.Extended = lastRun.extended

	rows, err := p.db.Query(ctx, `
		SELECT identifier, name, latitude, longitude, types FROM stations ORDER BY identifier
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	for rows.Next() {
		var s models.Station
		var types []string
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon, &types); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		if t.Extended {
			for _, tt := range types {
				s.Types = append(s.Types, models.TransportType(tt))
			}
		}
		t.Stations = append(t.Stations, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stations: %w", err)
	}

	rows, err = p.db.Query(ctx, `
		SELECT from_identifier, to_identifier, distance FROM station_connections ORDER BY from_identifier, to_identifier
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.From, &c.To, &c.Distance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		t.Connections = append(t.Connections, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read connections: %w", err)
	}

	if !t.Extended {
		return t, nil
	}

	rows, err = p.db.Query(ctx, `
		SELECT identifier, name, hex_color, transport_type, route_type,
		       COALESCE(description, ''), COALESCE(operator, ''), source_line_id
		FROM routes ORDER BY identifier
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	for rows.Next() {
		var r models.Route
		var transport, shape string
		if err := rows.Scan(&r.ID, &r.Name, &r.HexColor, &transport, &shape, &r.Description, &r.Operator, &r.SourceLineKey); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		r.TransportType = models.TransportType(transport)
		r.RouteType = models.RouteType(shape)
		t.Routes = append(t.Routes, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}

	rows, err = p.db.Query(ctx, `
		SELECT route_identifier, station_identifier, sequence, is_terminus
		FROM route_servings ORDER BY route_identifier, sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query servings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sv models.Serving
		if err := rows.Scan(&sv.RouteID, &sv.StationID, &sv.Sequence, &sv.IsTerminus); err != nil {
			return nil, fmt.Errorf("failed to scan serving: %w", err)
		}
		t.Servings = append(t.Servings, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read servings: %w", err)
	}

	return t, nil
}

// executeBatch executes a batch of queries
func executeBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch execution failed at query %d: %w", i, err)
		}
	}

	return nil
}

// analyze runs ANALYZE on the topology tables for query planning
func (p *Publisher) analyze(ctx context.Context) error {
	tables := []string{"routes", "stations", "route_servings", "station_connections"}

	for _, table := range tables {
		if _, err := p.db.Exec(ctx, fmt.Sprintf("ANALYZE %s", table)); err != nil {
			return err
		}
		logger.Debug("Analyzed table", "table", table)
	}

	return nil
}
