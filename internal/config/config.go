// Package config loads application configuration from the environment,
// with optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application settings.
type Config struct {
	// Server settings
	ListenAddr string

	// Storage paths
	DataPath  string // tenant database location
	OutputDir string // rendered fragments and final reports

	// Pipeline settings
	HistoryChunkSize   int
	ConnectorTimeout   time.Duration
	CollectConcurrency int
	ReportTimeout      time.Duration

	// Logging settings
	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first without overriding already-set variables.
func Load() (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:         envString("AURA_LISTEN_ADDR", ":7870"),
		DataPath:           envString("AURA_DATA_PATH", "/var/lib/aura"),
		OutputDir:          envString("AURA_OUTPUT_DIR", "/var/lib/aura/reports"),
		HistoryChunkSize:   envInt("AURA_HISTORY_CHUNK_SIZE", 5),
		ConnectorTimeout:   envDuration("AURA_CONNECTOR_TIMEOUT", 30*time.Second),
		CollectConcurrency: envInt("AURA_COLLECT_CONCURRENCY", 4),
		ReportTimeout:      envDuration("AURA_REPORT_TIMEOUT", 10*time.Minute),
		LogLevel:           envString("AURA_LOG_LEVEL", "info"),
		LogPretty:          envBool("AURA_LOG_PRETTY", false),
	}

	if cfg.HistoryChunkSize <= 0 {
		return nil, fmt.Errorf("AURA_HISTORY_CHUNK_SIZE must be positive")
	}
	if cfg.CollectConcurrency <= 0 {
		return nil, fmt.Errorf("AURA_COLLECT_CONCURRENCY must be positive")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
