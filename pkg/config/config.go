// Package config loads and validates the proxy configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend selection values.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the startup configuration surface.
type Config struct {
	// Host and Port are the listen address of the HTTP boundary.
	Host string
	Port string

	// Backend selects the cache backend ("memory" or "redis").
	Backend string

	// DefaultTTL is the entry lifetime when no per-request override is given.
	DefaultTTL time.Duration

	// MaxCacheSize is the entry capacity of the memory backend.
	MaxCacheSize int

	// RedisURL is the connection string for the redis backend
	// (e.g. "redis://localhost:6379").
	RedisURL string

	// UnavailablePolicy is "fail-closed" or "bypass".
	UnavailablePolicy string

	// ErrorCaching is "cache-errors" or "no-cache-errors".
	ErrorCaching string

	// OriginTimeout bounds each outbound origin request.
	OriginTimeout time.Duration

	// LogLevel is debug|info|warn|error; LogPretty enables console output.
	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment, applying defaults and
// rejecting unknown enum values at startup.
func Load() (Config, error) {
	cfg := Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnv("PORT", "8000"),
		Backend:           getEnv("CACHE_BACKEND", BackendMemory),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		UnavailablePolicy: getEnv("BACKEND_UNAVAILABLE_POLICY", "fail-closed"),
		ErrorCaching:      getEnv("CACHE_ERROR_RESPONSES", "no-cache-errors"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogPretty:         getEnv("LOG_PRETTY", "false") == "true",
	}

	ttlSeconds, err := getEnvInt("CACHE_TTL", 300)
	if err != nil {
		return Config{}, err
	}
	cfg.DefaultTTL = time.Duration(ttlSeconds) * time.Second

	cfg.MaxCacheSize, err = getEnvInt("MAX_CACHE_SIZE", 1000)
	if err != nil {
		return Config{}, err
	}

	timeoutSeconds, err := getEnvInt("ORIGIN_TIMEOUT", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.OriginTimeout = time.Duration(timeoutSeconds) * time.Second

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported cache backend: %q", c.Backend)
	}

	switch c.UnavailablePolicy {
	case "fail-closed", "bypass":
	default:
		return fmt.Errorf("unsupported backend unavailable policy: %q", c.UnavailablePolicy)
	}

	switch c.ErrorCaching {
	case "cache-errors", "no-cache-errors":
	default:
		return fmt.Errorf("unsupported error caching policy: %q", c.ErrorCaching)
	}

	if c.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive (got %v)", c.DefaultTTL)
	}
	if c.MaxCacheSize <= 0 {
		return fmt.Errorf("MAX_CACHE_SIZE must be positive (got %d)", c.MaxCacheSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
