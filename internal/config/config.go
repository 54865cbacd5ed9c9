package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/passbi/passbi_topology/internal/cache"
	"github.com/passbi/passbi_topology/internal/db"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration shared by the commands
type Config struct {
	Database db.Config    `yaml:"database"`
	Redis    cache.Config `yaml:"redis"`
	Server   ServerConfig `yaml:"server"`
	Nimby    NimbyConfig  `yaml:"nimby"`
	LogLevel string       `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port         int  `yaml:"port" validate:"min=1,max=65535"`
	CacheEnabled bool `yaml:"cache_enabled"`
	// RateLimit is the number of export requests per client and minute, 0 disables it
	RateLimit int `yaml:"rate_limit" validate:"min=0"`
}

// NimbyConfig describes the export the API serves
type NimbyConfig struct {
	InputDB  string `yaml:"input_db"`
	Operator string `yaml:"operator"`
	Directed bool   `yaml:"directed"`
	Sanitize bool   `yaml:"sanitize"`
}

// LoadEnv loads a .env file from the working directory when one exists
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadConfigFromEnv builds the configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	rateLimit, _ := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "30"))

	return &Config{
		Database: *db.LoadConfigFromEnv(),
		Redis:    *cache.LoadConfigFromEnv(),
		Server: ServerConfig{
			Port:         port,
			CacheEnabled: getEnv("CACHE_ENABLED", "false") == "true",
			RateLimit:    rateLimit,
		},
		Nimby: NimbyConfig{
			InputDB:  getEnv("NIMBY_INPUT_DB", ""),
			Operator: getEnv("NIMBY_OPERATOR", ""),
			Directed: getEnv("NIMBY_DIRECTED", "true") == "true",
			Sanitize: getEnv("NIMBY_SANITIZE", "false") == "true",
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Load reads .env and the environment, overlays the YAML file at path when
// path is not empty, and validates the result
func Load(path string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	cfg := LoadConfigFromEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags of cfg
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
