package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// ErrLockTimeout is returned when a rendering lock is not released in time
var ErrLockTimeout = errors.New("timeout waiting for lock")

// Config holds Redis configuration
type Config struct {
	Host       string        `yaml:"host" validate:"required"`
	Port       int           `yaml:"port" validate:"min=1,max=65535"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db" validate:"min=0"`
	TLSEnabled bool          `yaml:"tls_enabled"`
	TTL        time.Duration `yaml:"ttl" validate:"gt=0"`
	MutexTTL   time.Duration `yaml:"mutex_ttl" validate:"gt=0"`
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	if err != nil {
		ttl = 10 * time.Minute
	}
	mutexTTL, err := time.ParseDuration(getEnv("CACHE_MUTEX_TTL", "5s"))
	if err != nil {
		mutexTTL = 5 * time.Second
	}

	return &Config{
		Host:       getEnv("REDIS_HOST", "localhost"),
		Port:       port,
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         db,
		TLSEnabled: getEnv("REDIS_TLS_ENABLED", "false") == "true",
		TTL:        ttl,
		MutexTTL:   mutexTTL,
	}
}

// Options converts the config into go-redis client options
func (c *Config) Options() *redis.Options {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Managed Redis offerings only accept TLS
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return opts
}

// GetClient returns the global Redis client built from config (singleton pattern).
// Only the first call's config is used.
func GetClient(config *Config) (*redis.Client, error) {
	clientOnce.Do(func() {
		client = redis.NewClient(config.Options())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
			return
		}
	})

	return client, clientErr
}

// Close closes the global Redis client
func Close() {
	if client != nil {
		client.Close()
	}
}

// Store caches rendered topology exports
type Store struct {
	client   *redis.Client
	ttl      time.Duration
	mutexTTL time.Duration
}

// NewStore wraps a connected client
func NewStore(client *redis.Client, config *Config) *Store {
	return &Store{
		client:   client,
		ttl:      config.TTL,
		mutexTTL: config.MutexTTL,
	}
}

// ExportKey generates the cache key of one rendered export.
// version identifies the topology snapshot the export was rendered from.
func ExportKey(format, version string) string {
	hash := sha256.Sum256([]byte(version))
	return fmt.Sprintf("export:%s:%x", format, hash[:8])
}

// LockKey generates a mutex lock key
func LockKey(exportKey string) string {
	return fmt.Sprintf("lock:%s", exportKey)
}

// RateKey generates the counter key of one client in one window
func RateKey(clientID string, window time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", clientID, window.Unix())
}

// GetExport retrieves a cached export. A miss returns nil, nil.
func (s *Store) GetExport(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetExport caches a rendered export
func (s *Store) SetExport(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// AcquireLock attempts to take the rendering lock of an export.
// Returns true if the lock was acquired, false if someone else holds it.
func (s *Store) AcquireLock(ctx context.Context, exportKey string) (bool, error) {
	return s.client.SetNX(ctx, LockKey(exportKey), "1", s.mutexTTL).Result()
}

// ReleaseLock releases the rendering lock of an export
func (s *Store) ReleaseLock(ctx context.Context, exportKey string) error {
	return s.client.Del(ctx, LockKey(exportKey)).Err()
}

// WaitForExport waits for another renderer to release its lock, then reads
// the cached result
func (s *Store) WaitForExport(ctx context.Context, exportKey string, maxWait time.Duration) ([]byte, error) {
	lockKey := LockKey(exportKey)
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		exists, err := s.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}

		if exists == 0 {
			return s.GetExport(ctx, exportKey)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil, ErrLockTimeout
}

// Increment bumps a counter and sets its expiry on first use
func (s *Store) Increment(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// HealthCheck pings Redis
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
