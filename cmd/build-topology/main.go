package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/passbi/passbi_topology/internal/export"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/logger/console"
	"github.com/passbi/passbi_topology/internal/models"
	"github.com/passbi/passbi_topology/internal/nimby"
	"github.com/passbi/passbi_topology/internal/topology"
	"golang.org/x/sync/errgroup"
)

func main() {
	inputDB := flag.String("input-db", "", "Path to input nimby_rails.db")
	inputCSV := flag.String("input-csv", "", "Path to a CSV export directory or zip")
	operator := flag.String("operator", "", "Route operator value for generated output (required)")
	outputCypher := flag.String("output-cypher", "vtraffic_topology.cypher", "Path to output Cypher file, empty to skip")
	outputDB := flag.String("output-db", "", "Path to output SQLite database, empty to skip")
	directed := flag.Bool("directed", true, "Emit CONNECTS_TO in both directions")
	sanitize := flag.Bool("sanitize", false, "Remove stations with no connections")
	force := flag.Bool("force", false, "Overwrite outputs if they exist")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: *logLevel, Prefix: "build-topology"}))

	input := *inputDB
	if input == "" {
		input = *inputCSV
	}
	if input == "" || (*inputDB != "" && *inputCSV != "") || *operator == "" {
		fmt.Println("Usage: build-topology (--input-db=<nimby_rails.db> | --input-csv=<dir|zip>) --operator=<name> [--output-cypher=<path>] [--output-db=<path>] [--sanitize] [--force]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *outputCypher == "" && *outputDB == "" {
		logger.Fatal("Nothing to write: set --output-cypher or --output-db")
	}

	for _, path := range []string{*outputCypher, *outputDB} {
		if err := ensureOverwrite(path, *force); err != nil {
			logger.Fatal("Cannot write output", "err", err)
		}
	}

	ctx := context.Background()
	startTime := time.Now()

	logger.Info("Step 1/3: Loading export...", "input", input)
	snap, err := nimby.LoadSnapshot(ctx, input, true)
	if err != nil {
		logger.Fatal("Failed to load export", "err", err)
	}

	logger.Info("Step 2/3: Building topology...", "operator", *operator, "directed", *directed)
	topo := topology.Build(snap, topology.Options{Directed: *directed, Operator: *operator})
	if topo.Stats.DanglingStops > 0 {
		logger.Warn("Skipped stops referencing unknown stations", "count", topo.Stats.DanglingStops)
	}
	if *sanitize {
		var removed int
		topo, removed = topology.Sanitize(topo)
		if removed > 0 {
			logger.Info("Sanitized: removed unconnected stations", "count", removed)
		}
	}

	logger.Info("Step 3/3: Writing outputs...")
	if err := writeOutputs(ctx, topo, *outputCypher, *outputDB, time.Now()); err != nil {
		logger.Fatal("Failed to write outputs", "err", err)
	}

	logger.Info("Build completed",
		"routes", len(topo.Routes),
		"stations", len(topo.Stations),
		"servings", len(topo.Servings),
		"connections", len(topo.Connections),
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
}

// writeOutputs renders every requested output concurrently into staging
// files and moves them into place only once all of them succeeded
func writeOutputs(ctx context.Context, topo *models.Topology, cypherPath, dbPath string, now time.Time) error {
	var staged []string
	for _, path := range []string{cypherPath, dbPath} {
		if path != "" {
			staged = append(staged, path)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	meta := export.NewCypherMeta(now)

	if cypherPath != "" {
		g.Go(func() error {
			if err := export.StageFile(cypherPath, func(w io.Writer) error {
				return export.WriteCypher(w, topo, meta)
			}); err != nil {
				return fmt.Errorf("failed to write cypher: %w", err)
			}
			return nil
		})
	}

	var counts export.Counts
	if dbPath != "" {
		g.Go(func() error {
			var err error
			counts, err = export.StageSQLite(ctx, dbPath, topo, now)
			if err != nil {
				return fmt.Errorf("failed to write output database: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		export.Discard(staged...)
		return err
	}
	if err := export.Commit(staged...); err != nil {
		return err
	}

	if cypherPath != "" {
		logger.Info("Created output cypher", "path", cypherPath, "run", meta.RunID)
	}
	if dbPath != "" {
		logger.Info("Created output database",
			"path", dbPath,
			"routes", counts.Routes,
			"stations", counts.Stations,
			"route_servings", counts.RouteServings,
			"station_connections", counts.StationConnections,
			"route_servings_enriched", counts.RouteServingsEnriched,
		)
	}
	return nil
}

// ensureOverwrite fails when path exists and force is unset
func ensureOverwrite(path string, force bool) error {
	if path == "" || force {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return fmt.Errorf("output exists: %s (use --force to overwrite)", path)
}
