package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"secsync/internal/analytics"
	"secsync/internal/broadcast"
	"secsync/internal/cache"
	"secsync/internal/fetch"
	"secsync/internal/logger"
	"secsync/pkg/models"
)

// Options configures a SyncPipeline.
type Options struct {
	Fetch           fetch.Config
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	HistorySize     int
	// SeedSynthetic publishes the synthetic defaults before the first
	// refresh. Ignored in production.
	SeedSynthetic bool
	Diagnostics   *Dispatcher
	Clock         func() time.Time
	Sleep         func(ctx context.Context, d time.Duration) error
}

// SyncPipeline keeps the four security collections in sync with the remote
// and answers queries over the latest published values.
type SyncPipeline struct {
	source          fetch.Source
	store           *cache.Store
	hub             *broadcast.Hub
	history         *analytics.History
	fetcher         *fetch.Orchestrator
	diagnostics     *Dispatcher
	refreshInterval time.Duration
	seedSynthetic   bool
	production      bool
	now             func() time.Time

	loadingMu sync.Mutex
	inflight  int
}

// NewSyncPipeline creates a pipeline reading from source.
func NewSyncPipeline(source fetch.Source, opts Options) *SyncPipeline {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	p := &SyncPipeline{
		source:          source,
		store:           cache.NewStore(opts.CacheTTL, cache.WithClock(now)),
		hub:             broadcast.NewHub(),
		history:         analytics.NewHistory(opts.HistorySize),
		diagnostics:     opts.Diagnostics,
		refreshInterval: opts.RefreshInterval,
		seedSynthetic:   opts.SeedSynthetic,
		production:      opts.Fetch.Production,
		now:             now,
	}

	fetchOpts := []fetch.Option{
		fetch.WithPublisher(historyPublisher{hub: p.hub, history: p.history}),
		fetch.WithClock(now),
	}
	if opts.Sleep != nil {
		fetchOpts = append(fetchOpts, fetch.WithSleep(opts.Sleep))
	}
	if opts.Diagnostics != nil {
		fetchOpts = append(fetchOpts, fetch.WithDiagnostics(opts.Diagnostics))
	}
	p.fetcher = fetch.New(source, p.store, opts.Fetch, fetchOpts...)
	return p
}

// Hub returns the broadcast channels.
func (p *SyncPipeline) Hub() *broadcast.Hub {
	return p.hub
}

// Fetch fetches a single collection.
func (p *SyncPipeline) Fetch(ctx context.Context, kind models.Kind, forceRefresh bool) (fetch.Result, error) {
	p.beginLoading()
	defer p.endLoading()
	return p.fetcher.Fetch(ctx, kind, forceRefresh)
}

// RefreshAll fetches every collection concurrently. The error channel is
// cleared first and loading stays true until all fetches have finished.
// Failed kinds are joined into the returned error; the others still complete.
func (p *SyncPipeline) RefreshAll(ctx context.Context, forceRefresh bool) ([]fetch.Result, error) {
	p.hub.PublishError("")
	p.beginLoading()
	defer p.endLoading()

	results := make([]fetch.Result, len(models.AllKinds))
	errs := make([]error, len(models.AllKinds))

	var g errgroup.Group
	for i, kind := range models.AllKinds {
		g.Go(func() error {
			results[i], errs[i] = p.fetcher.Fetch(ctx, kind, forceRefresh)
			return nil
		})
	}
	g.Wait()

	return results, errors.Join(errs...)
}

// Run refreshes all collections on start and then every refresh interval
// until ctx is done. Diagnostics are dispatched for the lifetime of Run.
func (p *SyncPipeline) Run(ctx context.Context) error {
	logger.Infof("Sync pipeline started")

	var wg sync.WaitGroup
	defer wg.Wait()
	if p.diagnostics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.diagnostics.Run(ctx)
		}()
	}

	if p.seedSynthetic && !p.production {
		p.seed()
	}

	p.refresh(ctx, false)

	if p.refreshInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(p.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.refresh(ctx, true)
		}
	}
}

// ClearCache drops cached collections; all of them when no kind is given.
func (p *SyncPipeline) ClearCache(kinds ...models.Kind) {
	p.store.Clear(kinds...)
}

// Close releases the diagnostics writer and the source.
func (p *SyncPipeline) Close() error {
	var errs []error
	if p.diagnostics != nil {
		if err := p.diagnostics.Close(); err != nil {
			logger.Errorf("Failed to close diagnostics writer: %v", err)
			errs = append(errs, err)
		}
	}
	if c, ok := p.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *SyncPipeline) refresh(ctx context.Context, force bool) {
	results, err := p.RefreshAll(ctx, force)
	if err != nil && ctx.Err() == nil {
		logger.Warnf("Refresh finished with errors: %v", err)
	}
	for _, r := range results {
		if r.Degraded {
			logger.Debugf("Refresh of %s degraded to %s", r.Kind, r.Outcome)
		}
	}
}

func (p *SyncPipeline) seed() {
	now := p.now()
	for _, kind := range models.AllKinds {
		p.hub.PublishCollection(fetch.SyntheticDefaults(kind, now))
	}
	logger.Infof("Seeded collections with synthetic defaults")
}

func (p *SyncPipeline) beginLoading() {
	p.loadingMu.Lock()
	defer p.loadingMu.Unlock()
	p.inflight++
	if p.inflight == 1 {
		p.hub.SetLoading(true)
	}
}

func (p *SyncPipeline) endLoading() {
	p.loadingMu.Lock()
	defer p.loadingMu.Unlock()
	p.inflight--
	if p.inflight == 0 {
		p.hub.SetLoading(false)
	}
}

// historyPublisher records a severity snapshot for every vulnerabilities
// publication before forwarding to the hub.
type historyPublisher struct {
	hub     *broadcast.Hub
	history *analytics.History
}

func (h historyPublisher) PublishCollection(list models.EntityList) {
	if v, ok := list.(models.Vulnerabilities); ok {
		h.history.Record(analytics.CountVulnerabilities(v))
	}
	h.hub.PublishCollection(list)
}

func (h historyPublisher) PublishError(message string) {
	h.hub.PublishError(message)
}
