package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memoryCounter) Increment(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key]++
	return m.counts[key], nil
}

func newApp(counter Counter, limit int, now func() time.Time) *fiber.App {
	app := fiber.New()
	app.Use(rateLimit(counter, limit, now))
	app.Get("/export", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRateLimit(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 15, 0, time.UTC)
	app := newApp(&memoryCounter{}, 2, func() time.Time { return fixed })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/export", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/export", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "45", resp.Header.Get("Retry-After"))
}

func TestRateLimitNewWindow(t *testing.T) {
	current := time.Date(2024, 5, 1, 12, 0, 59, 0, time.UTC)
	app := newApp(&memoryCounter{}, 1, func() time.Time { return current })

	resp, err := app.Test(httptest.NewRequest("GET", "/export", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	current = current.Add(2 * time.Second)
	resp, err = app.Test(httptest.NewRequest("GET", "/export", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitFailsOpen(t *testing.T) {
	app := newApp(&memoryCounter{err: errors.New("redis down")}, 1, time.Now)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/export", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimitMiddleware(nil, 10))
	app.Get("/export", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/export", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"))
}
