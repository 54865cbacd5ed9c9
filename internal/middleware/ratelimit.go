package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_topology/internal/cache"
	"github.com/passbi/passbi_topology/internal/logger"
)

// Counter increments a windowed request counter
type Counter interface {
	Increment(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RateLimitMiddleware limits every client IP to perMinute requests per
// fixed one-minute window. Counter failures let the request through.
func RateLimitMiddleware(counter Counter, perMinute int) fiber.Handler {
	return rateLimit(counter, perMinute, time.Now)
}

func rateLimit(counter Counter, perMinute int, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if counter == nil || perMinute <= 0 {
			return c.Next()
		}

		current := now()
		window := current.Truncate(time.Minute)
		reset := window.Add(time.Minute)
		key := cache.RateKey(c.IP(), window)

		count, err := counter.Increment(c.Context(), key, 2*time.Minute)
		if err != nil {
			logger.Warn("Rate limit counter unavailable", "err", err)
			return c.Next()
		}

		remaining := int64(perMinute) - count
		if remaining < 0 {
			remaining = 0
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(perMinute) {
			retryAfter := int64(reset.Sub(current).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limit_exceeded",
				"message":     "Too many export requests",
				"limit":       perMinute,
				"retry_after": retryAfter,
			})
		}

		return c.Next()
	}
}
