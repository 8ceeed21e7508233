package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"secsync/internal/analytics"
	"secsync/internal/fetch"
	inputredis "secsync/internal/input/redis"
	"secsync/internal/logger"
	"secsync/internal/pipeline"
	"secsync/internal/server"
	"secsync/pkg/models"
)

var (
	refreshForce bool
	refreshKind  string
	analyzeDays  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync loop and the HTTP API",
	Long: `Refresh every collection on start and then every sync.refresh_interval,
serving the latest data, analytics, /metrics and a websocket stream when
server.enabled is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch collections once and print the outcome",
	Long: `Fetch every collection, or a single one with --kind, and print how each
fetch was satisfied.

Examples:
  secsync refresh
  secsync refresh --force --kind incidents`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print analytics over freshly fetched collections",
}

var analyzeMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Vulnerability counts per severity and risk score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(func(p *pipeline.SyncPipeline) interface{} { return p.CalculateSecurityMetrics() })
	},
}

var analyzeCorrelationCmd = &cobra.Command{
	Use:   "correlation",
	Short: "Vulnerabilities per asset type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(func(p *pipeline.SyncPipeline) interface{} { return p.AnalyzeAssetVulnerabilityCorrelation() })
	},
}

var analyzeTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Daily, weekly and monthly vulnerability trends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := analytics.ValidateTrendDays(analyzeDays); err != nil {
			return err
		}
		return runAnalyze(func(p *pipeline.SyncPipeline) interface{} { return p.AnalyzeVulnerabilityTrends(analyzeDays) })
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "bypass the cache")
	refreshCmd.Flags().StringVar(&refreshKind, "kind", "", "incidents|assets|threats|vulnerabilities")

	analyzeTrendsCmd.Flags().IntVar(&analyzeDays, "days", 30, "number of days in the daily series")
	analyzeCmd.AddCommand(analyzeMetricsCmd, analyzeCorrelationCmd, analyzeTrendsCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, p, _, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer func() {
		if err := p.Close(); err != nil {
			logger.Errorf("Close failed: %v", err)
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.Run(gctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})
	if tc := cfg.SecSync.Sync.Trigger; tc.Enabled {
		trigger, err := inputredis.NewTrigger(inputredis.TriggerConfig{
			Config: inputredis.Config{
				Addr:     tc.Redis.Addr,
				Password: tc.Redis.Password,
				DB:       tc.Redis.DB,
			},
			Key:          tc.Key,
			BlockTimeout: tc.BlockTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create refresh trigger: %w", err)
		}
		defer trigger.Close()
		g.Go(func() error {
			if err := p.ListenForRefresh(gctx, trigger); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}
	if cfg.SecSync.Server.Enabled {
		srv := server.New(p, cfg.SecSync.Server.Addr)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Infof("secsync stopped")
	return err
}

func runRefresh(cmd *cobra.Command, args []string) error {
	_, p, dispatcher, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer p.Close()

	ctx, cancel := signalContext()
	defer cancel()
	stop := startDiagnostics(ctx, dispatcher)
	defer stop()

	var results []fetch.Result
	if refreshKind != "" {
		kind, kerr := models.ParseKind(refreshKind)
		if kerr != nil {
			return kerr
		}
		res, ferr := p.Fetch(ctx, kind, refreshForce)
		results, err = []fetch.Result{res}, ferr
	} else {
		results, err = p.RefreshAll(ctx, refreshForce)
	}

	for _, r := range results {
		n := 0
		if r.Records != nil {
			n = r.Records.Len()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-20s records=%d attempts=%d\n", r.Kind, r.Outcome, n, r.Attempts)
	}
	return err
}

func runAnalyze(report func(*pipeline.SyncPipeline) interface{}) error {
	_, p, dispatcher, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer p.Close()

	ctx, cancel := signalContext()
	defer cancel()
	stop := startDiagnostics(ctx, dispatcher)
	defer stop()

	if _, err := p.RefreshAll(ctx, false); err != nil {
		logger.Warnf("Refresh finished with errors: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report(p))
}

// startDiagnostics runs the dispatcher outside of SyncPipeline.Run. The
// returned func flushes pending events and waits for the dispatcher to exit.
func startDiagnostics(ctx context.Context, d *pipeline.Dispatcher) func() {
	if d == nil {
		return func() {}
	}
	dctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Run(dctx)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
