package diagredis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"secsync/pkg/models"
)

// Config configures Redis access for diagnostics.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// MaxPerKind bounds each per-kind event list.
	MaxPerKind int64
}

// Writer keeps the latest events per kind in capped lists and counts
// failures per class.
type Writer struct {
	client     *redis.Client
	prefix     string
	maxPerKind int64
}

// NewWriter connects to Redis and checks connectivity.
func NewWriter(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis diagnostics: %w", err)
	}

	return newWriter(client, cfg.KeyPrefix, cfg.MaxPerKind), nil
}

func newWriter(client *redis.Client, prefix string, maxPerKind int64) *Writer {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "secsync:diagnostics"
	}
	if maxPerKind <= 0 {
		maxPerKind = 500
	}
	return &Writer{client: client, prefix: prefix, maxPerKind: maxPerKind}
}

// WriteDiagnostics pushes events and bumps class counters in one pipeline.
func (w *Writer) WriteDiagnostics(ctx context.Context, events []*models.Diagnostic) error {
	if len(events) == 0 {
		return nil
	}
	pipe := w.client.Pipeline()

	touched := make(map[string]struct{})
	for _, event := range events {
		if event == nil {
			continue
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal diagnostic: %w", err)
		}
		key := w.eventsKey(event.Kind)
		pipe.LPush(ctx, key, payload)
		touched[key] = struct{}{}
		pipe.HIncrBy(ctx, w.countsKey(), w.countField(event), 1)
	}
	for key := range touched {
		pipe.LTrim(ctx, key, 0, w.maxPerKind-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write diagnostics redis keys: %w", err)
	}
	return nil
}

// Close closes Redis resources.
func (w *Writer) Close() error {
	if w == nil || w.client == nil {
		return nil
	}
	return w.client.Close()
}

func (w *Writer) eventsKey(kind models.Kind) string {
	k := string(kind)
	if k == "" {
		k = "unknown"
	}
	return w.prefix + ":events:" + k
}

func (w *Writer) countsKey() string {
	return w.prefix + ":counts"
}

func (w *Writer) countField(event *models.Diagnostic) string {
	class := event.Class
	if class == "" {
		class = "unknown"
	}
	return string(event.Kind) + "|" + class
}
