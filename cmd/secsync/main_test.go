package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/config"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &config.Config{}
	applyDefaults(cfg)

	sc := cfg.SecSync
	assert.Equal(t, "http", sc.Remote.Mode)
	assert.Equal(t, 30*time.Second, sc.Remote.Timeout)
	assert.Equal(t, 5*time.Minute, sc.Sync.CacheTTL)
	assert.Equal(t, 3, sc.Sync.MaxRetries)
	assert.Equal(t, 2*time.Second, sc.Sync.BackoffBase)
	assert.Equal(t, 10, sc.Sync.HistorySize)
	assert.Equal(t, ":8080", sc.Server.Addr)
	assert.Equal(t, "output/diagnostics.jsonl", sc.Diagnostics.File.Path)
	assert.Equal(t, "info", sc.Logging.Level)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &config.Config{}
	cfg.SecSync.Sync.MaxRetries = -1
	cfg.SecSync.Sync.CacheTTL = time.Minute
	cfg.SecSync.Remote.Mode = "redis"
	applyDefaults(cfg)

	assert.Equal(t, -1, cfg.SecSync.Sync.MaxRetries)
	assert.Equal(t, time.Minute, cfg.SecSync.Sync.CacheTTL)
	assert.Equal(t, "redis", cfg.SecSync.Remote.Mode)
}

func TestFindConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("secsync: {}\n"), 0o644))
	assert.Equal(t, path, findConfigFile(path))
}

func TestBuildDiagnosticsWriterRejectsUnknownMode(t *testing.T) {
	_, err := buildDiagnosticsWriter(config.DiagnosticsConfig{Mode: "kafka"})
	assert.Error(t, err)
}

func TestBuildSourceRejectsUnknownMode(t *testing.T) {
	_, err := buildSource(config.RemoteConfig{Mode: "ftp"})
	assert.Error(t, err)
}

func TestAnalyzeTrendsRejectsLongWindow(t *testing.T) {
	prev := analyzeDays
	defer func() { analyzeDays = prev }()

	analyzeDays = 3000000
	err := analyzeTrendsCmd.RunE(analyzeTrendsCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 365")
}
