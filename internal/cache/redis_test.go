package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExportKey(t *testing.T) {
	a := ExportKey("graphml", "v1")
	b := ExportKey("graphml", "v1")
	c := ExportKey("graphml", "v2")
	d := ExportKey("cypher", "v1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.True(t, strings.HasPrefix(a, "export:graphml:"))
	assert.Len(t, strings.TrimPrefix(a, "export:graphml:"), 16)
}

func TestLockAndRateKeys(t *testing.T) {
	assert.Equal(t, "lock:export:cypher:abc", LockKey("export:cypher:abc"))

	window := time.Unix(1700000000, 0)
	assert.Equal(t, "ratelimit:10.0.0.1:1700000000", RateKey("10.0.0.1", window))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS_ENABLED", "true")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, "cache.internal", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)
	assert.True(t, cfg.TLSEnabled)
	assert.Equal(t, 10*time.Minute, cfg.TTL)

	opts := cfg.Options()
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.NotNil(t, opts.TLSConfig)
}
