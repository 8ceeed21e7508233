package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
secsync:
  remote:
    mode: http
    base_url: https://soc.example.com
    timeout: 10s
    token: from-file
    rate_limit:
      requests_per_second: 5
      burst: 2
  sync:
    cache_ttl: 5m
    max_retries: 3
    backoff_base: 2s
    refresh_interval: 1m
  diagnostics:
    enabled: true
    mode: file
    file:
      path: out/diag.jsonl
  logging:
    enabled: true
    level: debug
    format: json
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secsync.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SECSYNC_REMOTE_TOKEN", "")
	t.Setenv("SECSYNC_PRODUCTION", "")

	cfg, err := LoadConfig(writeSample(t))
	require.NoError(t, err)

	sc := cfg.SecSync
	assert.Equal(t, "https://soc.example.com", sc.Remote.BaseURL)
	assert.Equal(t, 10*time.Second, sc.Remote.Timeout)
	assert.Equal(t, "from-file", sc.Remote.Token)
	assert.Equal(t, 5.0, sc.Remote.RateLimit.RequestsPerSecond)
	assert.Equal(t, 5*time.Minute, sc.Sync.CacheTTL)
	assert.Equal(t, time.Minute, sc.Sync.RefreshInterval)
	assert.Equal(t, "out/diag.jsonl", sc.Diagnostics.File.Path)
	assert.Equal(t, "json", sc.Logging.Format)
	assert.False(t, sc.Sync.Production)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SECSYNC_REMOTE_TOKEN", "from-env")
	t.Setenv("SECSYNC_PRODUCTION", "true")

	cfg, err := LoadConfig(writeSample(t))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SecSync.Remote.Token)
	assert.True(t, cfg.SecSync.Sync.Production)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
