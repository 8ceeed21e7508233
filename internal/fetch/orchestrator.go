package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"secsync/internal/cache"
	"secsync/internal/logger"
	"secsync/internal/metrics"
	"secsync/internal/transform/records"
	"secsync/pkg/models"
)

// Source retrieves the remote envelope for a collection.
type Source interface {
	Fetch(ctx context.Context, kind models.Kind) (*models.Envelope, error)
}

// Publisher receives refreshed collections and user-facing errors.
type Publisher interface {
	PublishCollection(list models.EntityList)
	PublishError(message string)
}

// DiagnosticsReporter accepts failure events. Report must not block.
type DiagnosticsReporter interface {
	Report(d *models.Diagnostic)
}

// Outcome is how a fetch was satisfied.
type Outcome string

const (
	OutcomeCache             Outcome = "cache"
	OutcomeSuccess           Outcome = "success"
	OutcomeFallbackCache     Outcome = "fallback-cache"
	OutcomeFallbackSynthetic Outcome = "fallback-synthetic"
	OutcomeFailed            Outcome = "failed"
)

// Result describes a completed fetch.
type Result struct {
	Kind     models.Kind
	Records  models.EntityList
	Outcome  Outcome
	Attempts int
	// Degraded is set when the records come from a fallback.
	Degraded bool
}

// Config controls timeouts, retries and fallback.
type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	Production  bool
	Coalesce    bool
}

// DefaultConfig returns the standard fetch settings.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		BackoffBase: 2 * time.Second,
	}
}

// Orchestrator fetches collections with caching, retries and fallback.
type Orchestrator struct {
	source      Source
	cache       *cache.Store
	normalizer  *records.Normalizer
	publisher   Publisher
	diagnostics DiagnosticsReporter
	cfg         Config
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	tracer      trace.Tracer
	group       singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets the broadcast target.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithDiagnostics sets the diagnostics sink.
func WithDiagnostics(d DiagnosticsReporter) Option {
	return func(o *Orchestrator) { o.diagnostics = d }
}

// WithNormalizer overrides the record normalizer.
func WithNormalizer(n *records.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleep overrides how backoff delays are waited.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// New creates an Orchestrator.
func New(source Source, store *cache.Store, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	o := &Orchestrator{
		source:    source,
		cache:     store,
		cfg:       cfg,
		publisher: nopPublisher{},
		now:       time.Now,
		sleep:     sleepContext,
		tracer:    otel.Tracer("secsync/fetch"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.normalizer == nil {
		o.normalizer = records.New(records.WithClock(o.now))
	}
	if o.publisher == nil {
		o.publisher = nopPublisher{}
	}
	return o
}

// Fetch returns the collection for kind, from cache when valid unless
// forceRefresh is set. A nil error is returned for every fallback outcome.
func (o *Orchestrator) Fetch(ctx context.Context, kind models.Kind, forceRefresh bool) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("unknown kind %q", kind)
	}

	if !forceRefresh {
		if list, valid := o.cache.Get(kind); valid && list != nil {
			metrics.CacheLookups.WithLabelValues(string(kind), "hit").Inc()
			metrics.FetchOutcomes.WithLabelValues(string(kind), string(OutcomeCache)).Inc()
			logger.Debugf("Serving %s from cache", kind)
			return Result{Kind: kind, Records: list, Outcome: OutcomeCache}, nil
		}
		metrics.CacheLookups.WithLabelValues(string(kind), "miss").Inc()
	}

	if !o.cfg.Coalesce {
		return o.fetchRemote(ctx, kind)
	}
	v, err, shared := o.group.Do(string(kind), func() (interface{}, error) {
		return o.fetchRemote(ctx, kind)
	})
	if shared {
		logger.Debugf("Coalesced concurrent %s fetch", kind)
	}
	res, _ := v.(Result)
	return res, err
}

func (o *Orchestrator) fetchRemote(ctx context.Context, kind models.Kind) (Result, error) {
	ctx, span := o.tracer.Start(ctx, "fetch."+string(kind),
		trace.WithAttributes(attribute.String("secsync.kind", string(kind))))
	defer span.End()

	started := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
	}()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := o.backoff(attempt)
			logger.Warnf("Fetching %s failed (attempt %d/%d): %v; retrying in %s",
				kind, attempt, o.cfg.MaxRetries+1, lastErr, delay)
			if err := o.sleep(ctx, delay); err != nil {
				break
			}
		}

		attempts++
		list, err := o.attempt(ctx, kind)
		if err == nil {
			o.cache.Set(kind, list, o.now())
			o.publisher.PublishCollection(list)
			metrics.FetchAttempts.WithLabelValues(string(kind), "success").Inc()
			metrics.FetchOutcomes.WithLabelValues(string(kind), string(OutcomeSuccess)).Inc()
			span.SetAttributes(attribute.Int("secsync.attempts", attempts), attribute.Int("secsync.records", list.Len()))
			logger.Infof("Fetched %d %s in %d attempt(s)", list.Len(), kind, attempts)
			return Result{Kind: kind, Records: list, Outcome: OutcomeSuccess, Attempts: attempts}, nil
		}

		lastErr = err
		metrics.FetchAttempts.WithLabelValues(string(kind), "error").Inc()
		span.AddEvent("attempt failed", trace.WithAttributes(
			attribute.Int("secsync.attempt", attempts),
			attribute.String("error", err.Error()),
		))
		if errors.Is(err, models.ErrSessionExpired) {
			break
		}
	}

	span.SetAttributes(attribute.Int("secsync.attempts", attempts))
	return o.fallback(ctx, span, kind, lastErr, attempts)
}

func (o *Orchestrator) attempt(ctx context.Context, kind models.Kind) (models.EntityList, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	env, err := o.source.Fetch(attemptCtx, kind)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", context.DeadlineExceeded, o.cfg.Timeout, err)
		}
		return nil, err
	}
	if env == nil {
		return nil, &RemoteStatusError{Message: "empty response"}
	}
	if strings.EqualFold(env.Status, models.EnvelopeError) {
		return nil, &RemoteStatusError{Message: env.Message}
	}

	raw, err := env.Payload()
	if err != nil {
		return nil, err
	}
	return o.normalizer.Normalize(kind, raw), nil
}

func (o *Orchestrator) fallback(ctx context.Context, span trace.Span, kind models.Kind, lastErr error, attempts int) (Result, error) {
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	fe := Classify(kind, lastErr, attempts)

	if entry, err := o.cache.Lookup(kind); err == nil {
		logger.Warnf("Serving cached %s fetched at %s after failure: %v",
			kind, entry.FetchedAt.Format(time.RFC3339), lastErr)
		o.publisher.PublishCollection(entry.Value)
		o.report(fe, OutcomeFallbackCache)
		metrics.FetchOutcomes.WithLabelValues(string(kind), string(OutcomeFallbackCache)).Inc()
		span.SetAttributes(attribute.String("secsync.outcome", string(OutcomeFallbackCache)))
		return Result{Kind: kind, Records: entry.Value, Outcome: OutcomeFallbackCache, Attempts: attempts, Degraded: true}, nil
	}

	if !o.cfg.Production {
		list := SyntheticDefaults(kind, o.now())
		logger.Warnf("Using synthetic %s after failure: %v", kind, lastErr)
		o.publisher.PublishCollection(list)
		o.report(fe, OutcomeFallbackSynthetic)
		metrics.FetchOutcomes.WithLabelValues(string(kind), string(OutcomeFallbackSynthetic)).Inc()
		span.SetAttributes(attribute.String("secsync.outcome", string(OutcomeFallbackSynthetic)))
		return Result{Kind: kind, Records: list, Outcome: OutcomeFallbackSynthetic, Attempts: attempts, Degraded: true}, nil
	}

	logger.Errorf("Fetching %s failed after %d attempt(s): %v", kind, attempts, lastErr)
	o.publisher.PublishError(fe.Message)
	o.report(fe, OutcomeFailed)
	metrics.FetchOutcomes.WithLabelValues(string(kind), string(OutcomeFailed)).Inc()
	span.RecordError(fe)
	span.SetStatus(codes.Error, fe.Message)
	return Result{Kind: kind, Outcome: OutcomeFailed, Attempts: attempts}, fe
}

func (o *Orchestrator) report(fe *FetchError, outcome Outcome) {
	if o.diagnostics == nil {
		return
	}
	d := &models.Diagnostic{
		ID:         uuid.NewString(),
		Timestamp:  o.now(),
		Kind:       fe.Kind,
		Class:      string(fe.Class),
		StatusCode: fe.StatusCode,
		Message:    fe.Message,
		Attempts:   fe.Attempts,
		Outcome:    string(outcome),
	}
	if fe.Err != nil {
		d.Detail = fe.Err.Error()
	}
	o.diagnostics.Report(d)
}

// backoff returns the delay before retry n (1-based): base, 2*base, 4*base...
func (o *Orchestrator) backoff(n int) time.Duration {
	return o.cfg.BackoffBase << (n - 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishCollection(models.EntityList) {}
func (nopPublisher) PublishError(string)                 {}
