package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/passbi/passbi_topology/internal/config"
	"github.com/passbi/passbi_topology/internal/db"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/logger/console"
	"github.com/passbi/passbi_topology/internal/nimby"
	"github.com/passbi/passbi_topology/internal/store"
	"github.com/passbi/passbi_topology/internal/topology"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	inputDB := flag.String("input-db", "", "Path to input nimby_rails.db, CSV directory or zip (required)")
	operator := flag.String("operator", "", "Route operator value (defaults to NIMBY_OPERATOR)")
	directed := flag.Bool("directed", true, "Publish connections in both directions")
	sanitize := flag.Bool("sanitize", false, "Remove stations with no connections")
	yes := flag.Bool("yes", false, "Skip the confirmation prompt")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: cfg.LogLevel, Prefix: "publish"}))

	if *inputDB == "" {
		*inputDB = cfg.Nimby.InputDB
	}
	if *operator == "" {
		*operator = cfg.Nimby.Operator
	}
	if *inputDB == "" || *operator == "" {
		fmt.Println("Usage: publish --input-db=<nimby_rails.db> --operator=<name> [--config=config.yml] [--sanitize] [--yes]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()

	logger.Info("Step 1/4: Loading export...", "input", *inputDB)
	snap, err := nimby.LoadSnapshot(ctx, *inputDB, true)
	if err != nil {
		logger.Fatal("Failed to load export", "err", err)
	}

	logger.Info("Step 2/4: Building topology...", "operator", *operator, "directed", *directed)
	topo := topology.Build(snap, topology.Options{Directed: *directed, Operator: *operator})
	if topo.Stats.DanglingStops > 0 {
		logger.Warn("Skipped stops referencing unknown stations", "count", topo.Stats.DanglingStops)
	}
	if *sanitize {
		var removed int
		topo, removed = topology.Sanitize(topo)
		logger.Info("Sanitized topology", "removed", removed)
	}

	logger.Info("Topology statistics",
		"stations", len(topo.Stations),
		"connections", len(topo.Connections),
		"routes", len(topo.Routes),
		"servings", len(topo.Servings),
	)

	if !*yes {
		fmt.Println()
		fmt.Println("This will REPLACE the published topology!")
		fmt.Print("Continue? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)

		if confirm != "yes" && confirm != "y" {
			logger.Info("Publish cancelled")
			os.Exit(0)
		}
	}

	logger.Info("Step 3/4: Connecting to database...", "host", cfg.Database.Host, "database", cfg.Database.Database)
	pool, err := db.NewPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer pool.Close()

	publisher := store.NewPublisher(pool)
	if err := publisher.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to prepare schema", "err", err)
	}

	logger.Info("Step 4/4: Publishing topology...")
	startTime := time.Now()

	result, err := publisher.Publish(ctx, topo, *inputDB, *operator)
	if err != nil {
		logger.Fatal("Publish failed", "err", err)
	}

	logger.Info("Publish completed",
		"run", result.RunID,
		"stations", result.Stations,
		"connections", result.Connections,
		"routes", result.Routes,
		"servings", result.Servings,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
}
