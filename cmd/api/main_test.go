package main

import (
	"testing"

	"github.com/passbi/passbi_topology/internal/cache"
	"github.com/passbi/passbi_topology/internal/config"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type warnRecorder struct {
	warnings []string
}

func (w *warnRecorder) Debug(message string, keyvals ...any) {}
func (w *warnRecorder) Info(message string, keyvals ...any)  {}
func (w *warnRecorder) Warn(message string, keyvals ...any)  { w.warnings = append(w.warnings, message) }
func (w *warnRecorder) Error(message string, keyvals ...any) {}
func (w *warnRecorder) Fatal(message string, keyvals ...any) {}

func TestExportLimiter(t *testing.T) {
	t.Cleanup(func() { logger.Init() })

	t.Run("Rate limit without cache warns and disables", func(t *testing.T) {
		rec := &warnRecorder{}
		logger.Init(rec)

		limiter := exportLimiter(config.ServerConfig{RateLimit: 60}, nil)
		assert.Nil(t, limiter)
		assert.Len(t, rec.warnings, 1)
		assert.Contains(t, rec.warnings[0], "CACHE_ENABLED")
	})

	t.Run("No rate limit stays quiet", func(t *testing.T) {
		rec := &warnRecorder{}
		logger.Init(rec)

		assert.Nil(t, exportLimiter(config.ServerConfig{}, nil))
		assert.Empty(t, rec.warnings)
	})

	t.Run("Cache backs the limiter", func(t *testing.T) {
		rec := &warnRecorder{}
		logger.Init(rec)

		client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
		defer client.Close()
		redisStore := cache.NewStore(client, &cache.Config{})

		limiter := exportLimiter(config.ServerConfig{CacheEnabled: true, RateLimit: 60}, redisStore)
		assert.Same(t, redisStore, limiter)
		assert.Empty(t, rec.warnings)
	})
}
