package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	SecSync SecSyncConfig `yaml:"secsync"`
}

// SecSyncConfig is the project configuration.
type SecSyncConfig struct {
	Remote      RemoteConfig      `yaml:"remote"`
	Sync        SyncConfig        `yaml:"sync"`
	Server      ServerConfig      `yaml:"server"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// RemoteConfig controls where collections are fetched from.
type RemoteConfig struct {
	Mode         string            `yaml:"mode"` // http|redis
	BaseURL      string            `yaml:"base_url"`
	Timeout      time.Duration     `yaml:"timeout"`
	Headers      map[string]string `yaml:"headers"`
	Token        string            `yaml:"token"`
	RefreshToken string            `yaml:"refresh_token"`
	RefreshURL   string            `yaml:"refresh_url"`
	RateLimit    RateLimitConfig   `yaml:"rate_limit"`
	Redis        RedisConfig       `yaml:"redis"`
}

// RateLimitConfig paces outgoing requests.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RedisConfig controls Redis access.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SyncConfig controls caching, retries and refresh scheduling.
type SyncConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Coalesce        bool          `yaml:"coalesce"`
	Production      bool          `yaml:"production"`
	SeedSynthetic   bool          `yaml:"seed_synthetic"`
	HistorySize     int           `yaml:"history_size"`
	Trigger         TriggerConfig `yaml:"trigger"`
}

// TriggerConfig controls the Redis list that upstream exporters push
// refresh requests onto.
type TriggerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	Redis        RedisConfig   `yaml:"redis"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DiagnosticsConfig controls the failure-event sink.
type DiagnosticsConfig struct {
	Enabled       bool                   `yaml:"enabled"`
	Mode          string                 `yaml:"mode"` // file|http|redis|clickhouse
	File          FileOutputConfig       `yaml:"file"`
	HTTP          HTTPOutputConfig       `yaml:"http"`
	Redis         RedisConfig            `yaml:"redis"`
	ClickHouse    ClickHouseOutputConfig `yaml:"clickhouse"`
	BufferSize    int                    `yaml:"buffer_size"`
	BatchSize     int                    `yaml:"batch_size"`
	FlushInterval time.Duration          `yaml:"flush_interval"`
	MaxPerKind    int64                  `yaml:"max_per_kind"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
	Format  string `yaml:"format"` // console|json
}

// LoadConfig reads and parses a YAML config file, then applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.SecSync.Remote.Token = getEnv("SECSYNC_REMOTE_TOKEN", c.SecSync.Remote.Token)
	if v := getEnv("SECSYNC_PRODUCTION", ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SecSync.Sync.Production = b
		}
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
