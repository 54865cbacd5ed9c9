package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/passbi/passbi_topology/internal/api"
	"github.com/passbi/passbi_topology/internal/cache"
	"github.com/passbi/passbi_topology/internal/config"
	"github.com/passbi/passbi_topology/internal/db"
	"github.com/passbi/passbi_topology/internal/graph"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/logger/console"
	"github.com/passbi/passbi_topology/internal/middleware"
	"github.com/passbi/passbi_topology/internal/models"
	"github.com/passbi/passbi_topology/internal/nimby"
	"github.com/passbi/passbi_topology/internal/store"
	"github.com/passbi/passbi_topology/internal/topology"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Level: cfg.LogLevel, Prefix: "api"}))

	logger.Info("Starting PassBi Topology API server...")

	ctx := context.Background()
	g := graph.New()
	checks := make(map[string]api.HealthCheck)

	if cfg.Nimby.InputDB != "" {
		// Serve straight from an export file
		if err := g.Load(buildFromExport(ctx, cfg.Nimby)); err != nil {
			logger.Fatal("Failed to load topology", "err", err)
		}
		logger.Info("✓ Topology built from export", "input", cfg.Nimby.InputDB)
	} else {
		pool, err := db.NewPool(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer pool.Close()
		logger.Info("✓ Database connection established")

		if err := g.LoadFrom(ctx, store.NewPublisher(pool)); err != nil {
			logger.Fatal("Failed to load published topology", "err", err)
		}
		logger.Info("✓ Published topology loaded into memory")

		checks["database"] = func(ctx context.Context) error {
			return db.HealthCheck(ctx, pool)
		}
	}

	var exports api.ExportCache
	var redisStore *cache.Store
	if cfg.Server.CacheEnabled {
		client, err := cache.GetClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "err", err)
		}
		defer cache.Close()
		logger.Info("✓ Redis connection established")

		redisStore = cache.NewStore(client, &cfg.Redis)
		exports = redisStore
		checks["redis"] = redisStore.HealthCheck
	}

	app := api.NewApp(api.NewHandlers(g, exports, checks), api.AppOptions{
		RateLimiter:        exportLimiter(cfg.Server, redisStore),
		RateLimitPerMinute: cfg.Server.RateLimit,
		AccessLog:          cfg.LogLevel == "debug",
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gracefully...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("Error during shutdown", "err", err)
		}
	}()

	logger.Info("Server listening", "addr", "http://localhost"+addr)
	logger.Info("Shortest path", "url", fmt.Sprintf("http://localhost%s/v1/path?from=ID&to=ID", addr))
	logger.Info("Health check", "url", fmt.Sprintf("http://localhost%s/health", addr))

	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server", "err", err)
	}
}

// exportLimiter returns the counter behind the export rate limit. The limit
// is counted in Redis, so it is off whenever the cache is.
func exportLimiter(cfg config.ServerConfig, redisStore *cache.Store) middleware.Counter {
	if redisStore == nil {
		if cfg.RateLimit > 0 {
			logger.Warn("Export rate limit disabled, it requires CACHE_ENABLED=true", "rate_limit", cfg.RateLimit)
		}
		return nil
	}
	return redisStore
}

func buildFromExport(ctx context.Context, cfg config.NimbyConfig) *models.Topology {
	snap, err := nimby.LoadSnapshot(ctx, cfg.InputDB, true)
	if err != nil {
		logger.Fatal("Failed to load export", "err", err)
	}

	topo := topology.Build(snap, topology.Options{Directed: cfg.Directed, Operator: cfg.Operator})
	if topo.Stats.DanglingStops > 0 {
		logger.Warn("Skipped stops referencing unknown stations", "count", topo.Stats.DanglingStops)
	}
	if cfg.Sanitize {
		topo, _ = topology.Sanitize(topo)
	}
	return topo
}
