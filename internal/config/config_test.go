package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7870", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.HistoryChunkSize)
	assert.Equal(t, 30*time.Second, cfg.ConnectorTimeout)
	assert.Equal(t, 4, cfg.CollectConcurrency)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AURA_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("AURA_HISTORY_CHUNK_SIZE", "10")
	t.Setenv("AURA_CONNECTOR_TIMEOUT", "5s")
	t.Setenv("AURA_LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.HistoryChunkSize)
	assert.Equal(t, 5*time.Second, cfg.ConnectorTimeout)
	assert.True(t, cfg.LogPretty)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("AURA_HISTORY_CHUNK_SIZE", "-1")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("AURA_COLLECT_CONCURRENCY", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.CollectConcurrency, "malformed values fall back to defaults")
}
