package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/passbi/passbi_topology/internal/export"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/logger/console"
	"github.com/passbi/passbi_topology/internal/nimby"
	"github.com/passbi/passbi_topology/internal/topology"
)

func main() {
	var input, output string
	flag.StringVar(&input, "i", "", "Path to input nimby_rails.db, CSV directory or zip (required)")
	flag.StringVar(&input, "input", "", "Alias for -i")
	flag.StringVar(&output, "o", "nimby_rails.graphml", "Path to output GraphML file")
	flag.StringVar(&output, "output", "nimby_rails.graphml", "Alias for -o")

	var directed, sanitize bool
	flag.BoolVar(&directed, "d", false, "Emit directed edges (a->b and b->a)")
	flag.BoolVar(&directed, "directed", false, "Alias for -d")
	flag.BoolVar(&sanitize, "s", false, "Remove stations with no connections")
	flag.BoolVar(&sanitize, "sanitize", false, "Alias for -s")

	force := flag.Bool("force", false, "Overwrite output if it exists")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: *logLevel, Prefix: "build-graph"}))

	if input == "" {
		fmt.Println("Usage: build-graph -i <nimby_rails.db> [-o nimby_rails.graphml] [-d] [-s] [--force]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(output); err == nil && !*force {
		logger.Fatal("Output exists (use --force to overwrite)", "path", output)
	}

	ctx := context.Background()

	logger.Info("Step 1/3: Loading export...", "input", input)
	snap, err := nimby.LoadSnapshot(ctx, input, false)
	if err != nil {
		logger.Fatal("Failed to load export", "err", err)
	}

	logger.Info("Step 2/3: Building topology...", "directed", directed)
	topo := topology.Build(snap, topology.Options{Directed: directed})
	if topo.Stats.DanglingStops > 0 {
		logger.Warn("Skipped stops referencing unknown stations", "count", topo.Stats.DanglingStops)
	}

	if sanitize {
		var removed int
		topo, removed = topology.Sanitize(topo)
		if removed > 0 {
			logger.Info("Sanitized: removed unconnected stations", "count", removed)
		}
	}

	logger.Info("Step 3/3: Writing GraphML...", "output", output)
	if err := export.WriteFile(output, func(w io.Writer) error {
		return export.WriteGraphML(w, topo)
	}); err != nil {
		logger.Fatal("Failed to write GraphML", "err", err)
	}

	logger.Info("Written", "path", output, "stations", len(topo.Stations), "edges", len(topo.Connections))
}
