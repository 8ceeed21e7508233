package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"secsync/config"
	"secsync/internal/fetch"
	"secsync/internal/input/httpapi"
	inputredis "secsync/internal/input/redis"
	"secsync/internal/logger"
	"secsync/internal/output/diagclickhouse"
	"secsync/internal/output/diaghttp"
	"secsync/internal/output/diagjson"
	"secsync/internal/output/diagredis"
	"secsync/internal/pipeline"
)

var configArg string

var rootCmd = &cobra.Command{
	Use:   "secsync",
	Short: "Keep security collections in sync with a remote SOC API",
	Long: `secsync fetches incidents, assets, threats and vulnerabilities from a
remote security API, caches and normalizes them, and serves the latest
collections, analytics and a live update stream over HTTP.

Examples:
  secsync serve --config secsync.yml
  secsync refresh --force --kind vulnerabilities
  secsync analyze trends --days 14`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configArg, "config", "c", "", "path to secsync.yml")
	rootCmd.AddCommand(serveCmd, refreshCmd, analyzeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("secsync.yml"); err == nil {
		return "secsync.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "secsync.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "secsync.yml"
}

func applyDefaults(cfg *config.Config) {
	sc := &cfg.SecSync

	if sc.Remote.Mode == "" {
		sc.Remote.Mode = "http"
	}
	if sc.Remote.Timeout <= 0 {
		sc.Remote.Timeout = 30 * time.Second
	}

	if sc.Sync.CacheTTL <= 0 {
		sc.Sync.CacheTTL = 5 * time.Minute
	}
	if sc.Sync.Timeout <= 0 {
		sc.Sync.Timeout = 30 * time.Second
	}
	// A negative value disables retries.
	if sc.Sync.MaxRetries == 0 {
		sc.Sync.MaxRetries = 3
	}
	if sc.Sync.BackoffBase <= 0 {
		sc.Sync.BackoffBase = 2 * time.Second
	}
	if sc.Sync.HistorySize <= 0 {
		sc.Sync.HistorySize = 10
	}
	if sc.Sync.Trigger.Key == "" {
		sc.Sync.Trigger.Key = "secsync:refresh"
	}
	if sc.Sync.Trigger.BlockTimeout <= 0 {
		sc.Sync.Trigger.BlockTimeout = 5 * time.Second
	}

	if sc.Server.Addr == "" {
		sc.Server.Addr = ":8080"
	}

	if sc.Diagnostics.Mode == "" {
		sc.Diagnostics.Mode = "file"
	}
	if sc.Diagnostics.File.Path == "" {
		sc.Diagnostics.File.Path = "output/diagnostics.jsonl"
	}
	if sc.Diagnostics.BufferSize <= 0 {
		sc.Diagnostics.BufferSize = 256
	}
	if sc.Diagnostics.BatchSize <= 0 {
		sc.Diagnostics.BatchSize = 50
	}
	if sc.Diagnostics.FlushInterval <= 0 {
		sc.Diagnostics.FlushInterval = 2 * time.Second
	}

	if sc.Logging.Level == "" {
		sc.Logging.Level = "info"
	}
	if sc.Logging.Format == "" {
		sc.Logging.Format = "console"
	}
}

// setup loads the configuration, initializes logging and assembles the
// pipeline. The returned dispatcher is nil when diagnostics are disabled.
func setup() (*config.Config, *pipeline.SyncPipeline, *pipeline.Dispatcher, error) {
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyDefaults(cfg)

	lc := cfg.SecSync.Logging
	if err := logger.Init(lc.Enabled, lc.Level, lc.File, lc.Console, lc.Format); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Infof("secsync starting")
	logger.Infof("Config loaded from: %s", configPath)

	source, err := buildSource(cfg.SecSync.Remote)
	if err != nil {
		return nil, nil, nil, err
	}

	var dispatcher *pipeline.Dispatcher
	if cfg.SecSync.Diagnostics.Enabled {
		writer, err := buildDiagnosticsWriter(cfg.SecSync.Diagnostics)
		if err != nil {
			return nil, nil, nil, err
		}
		dc := cfg.SecSync.Diagnostics
		dispatcher = pipeline.NewDispatcher(writer, dc.BufferSize, dc.BatchSize, dc.FlushInterval)
	}

	sc := cfg.SecSync.Sync
	p := pipeline.NewSyncPipeline(source, pipeline.Options{
		Fetch: fetch.Config{
			Timeout:     sc.Timeout,
			MaxRetries:  sc.MaxRetries,
			BackoffBase: sc.BackoffBase,
			Production:  sc.Production,
			Coalesce:    sc.Coalesce,
		},
		CacheTTL:        sc.CacheTTL,
		RefreshInterval: sc.RefreshInterval,
		HistorySize:     sc.HistorySize,
		SeedSynthetic:   sc.SeedSynthetic,
		Diagnostics:     dispatcher,
	})
	return cfg, p, dispatcher, nil
}

func buildSource(rc config.RemoteConfig) (fetch.Source, error) {
	switch strings.ToLower(rc.Mode) {
	case "redis":
		src, err := inputredis.NewSource(inputredis.Config{
			Addr:      rc.Redis.Addr,
			Password:  rc.Redis.Password,
			DB:        rc.Redis.DB,
			KeyPrefix: rc.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis source: %w", err)
		}
		logger.Infof("Remote source: redis %s", rc.Redis.Addr)
		return src, nil
	case "http":
		var tokens httpapi.TokenSource
		switch {
		case rc.RefreshURL != "":
			tokens = httpapi.NewEndpointTokenSource(rc.RefreshURL, rc.Token, rc.RefreshToken, rc.Timeout)
		case rc.Token != "":
			tokens = httpapi.NewStaticTokenSource(rc.Token)
		}
		src, err := httpapi.NewSource(httpapi.Config{
			BaseURL:           rc.BaseURL,
			Timeout:           rc.Timeout,
			Headers:           rc.Headers,
			RequestsPerSecond: rc.RateLimit.RequestsPerSecond,
			Burst:             rc.RateLimit.Burst,
			Tokens:            tokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create http source: %w", err)
		}
		logger.Infof("Remote source: %s", rc.BaseURL)
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported remote mode: %s", rc.Mode)
	}
}

func buildDiagnosticsWriter(dc config.DiagnosticsConfig) (pipeline.DiagnosticsWriter, error) {
	switch strings.ToLower(dc.Mode) {
	case "file":
		w, err := diagjson.NewWriter(dc.File.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create diagnostics writer: %w", err)
		}
		return w, nil
	case "http":
		w, err := diaghttp.NewWriter(diaghttp.Config{
			URL:     dc.HTTP.URL,
			Timeout: dc.HTTP.Timeout,
			Headers: dc.HTTP.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create diagnostics http writer: %w", err)
		}
		logger.Infof("Diagnostics HTTP writer initialized: %s", dc.HTTP.URL)
		return w, nil
	case "redis":
		w, err := diagredis.NewWriter(diagredis.Config{
			Addr:       dc.Redis.Addr,
			Password:   dc.Redis.Password,
			DB:         dc.Redis.DB,
			KeyPrefix:  dc.Redis.KeyPrefix,
			MaxPerKind: dc.MaxPerKind,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create diagnostics redis writer: %w", err)
		}
		logger.Infof("Diagnostics Redis writer initialized: %s", dc.Redis.Addr)
		return w, nil
	case "clickhouse":
		ch := dc.ClickHouse
		w, err := diagclickhouse.NewWriter(diagclickhouse.Config{
			URL:      ch.URL,
			Database: ch.Database,
			Table:    ch.Table,
			Username: ch.Username,
			Password: ch.Password,
			Timeout:  ch.Timeout,
			Headers:  ch.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create diagnostics clickhouse writer: %w", err)
		}
		logger.Infof("Diagnostics ClickHouse writer initialized: %s", ch.URL)
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported diagnostics mode: %s", dc.Mode)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Infof("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
