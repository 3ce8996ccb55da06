// Package config loads taskmesh configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the server.
type Config struct {
	// DataDir is where the SQLite database lives.
	DataDir string

	// CacheMaxSize caps the resolution cache entry count.
	CacheMaxSize int

	// CacheTTL is the default lifetime of a cached resolution. The TTL
	// is a capacity/staleness safety net; correctness comes from
	// signature-driven invalidation.
	CacheTTL time.Duration

	// BootstrapAutoCreate controls whether writes materialize missing
	// ancestor contexts by default.
	BootstrapAutoCreate bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:             filepath.Join(home, ".taskmesh"),
		CacheMaxSize:        1000,
		CacheTTL:            300 * time.Second,
		BootstrapAutoCreate: true,
		LogLevel:            "info",
	}
}

// FromEnv returns the default configuration overridden by any
// recognized environment variables.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("TASKMESH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CACHE_MAX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("config: CACHE_MAX_SIZE %q: want positive integer", v)
		}
		cfg.CacheMaxSize = n
	}
	if v := os.Getenv("CACHE_DEFAULT_TTL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("config: CACHE_DEFAULT_TTL_SECONDS %q: want non-negative integer", v)
		}
		cfg.CacheTTL = time.Duration(n) * time.Second
	}
	if v := os.Getenv("BOOTSTRAP_AUTO_CREATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("config: BOOTSTRAP_AUTO_CREATE %q: want boolean", v)
		}
		cfg.BootstrapAutoCreate = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		switch v {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = v
		default:
			return cfg, fmt.Errorf("config: LOG_LEVEL %q: want debug, info, warn, or error", v)
		}
	}

	return cfg, nil
}
