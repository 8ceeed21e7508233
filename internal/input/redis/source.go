package redis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"secsync/pkg/models"
)

// Config configures the Redis envelope source.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// TriggerConfig configures the list refresh requests are pushed onto.
type TriggerConfig struct {
	Config
	Key          string
	BlockTimeout time.Duration
}

// Source reads collection envelopes published under "<prefix>:<kind>" keys,
// for deployments where an upstream exporter mirrors the REST API into Redis.
type Source struct {
	client *redis.Client
	prefix string
}

// Trigger pops refresh requests pushed by upstream exporters. Each message
// names a collection kind or "all".
type Trigger struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

func newClient(cfg Config) *redis.Client {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewSource creates a Redis source and checks connectivity.
func NewSource(cfg Config) (*Source, error) {
	client := newClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis source: %w", err)
	}

	return newSource(client, cfg.KeyPrefix), nil
}

func newSource(client *redis.Client, prefix string) *Source {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "secsync:security"
	}
	return &Source{client: client, prefix: prefix}
}

// Fetch reads and decodes the envelope for kind. A missing key is reported
// as a 404 status.
func (s *Source) Fetch(ctx context.Context, kind models.Kind) (*models.Envelope, error) {
	payload, err := s.client.Get(ctx, s.key(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &models.StatusError{Code: http.StatusNotFound, Status: "Not Found"}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s envelope: %w", kind, err)
	}
	return models.DecodeEnvelope(payload)
}

// Close closes Redis resources.
func (s *Source) Close() error {
	return s.client.Close()
}

func (s *Source) key(kind models.Kind) string {
	return s.prefix + ":" + string(kind)
}

// NewTrigger creates a trigger on cfg.Key. The connection is opened lazily
// by the first Pop.
func NewTrigger(cfg TriggerConfig) (*Trigger, error) {
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return nil, fmt.Errorf("redis trigger key is required")
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return &Trigger{client: newClient(cfg.Config), key: key, blockTimeout: cfg.BlockTimeout}, nil
}

// Pop blocks for one request. It returns nil, nil when the block timeout
// elapses with the list still empty.
func (t *Trigger) Pop(ctx context.Context) ([]byte, error) {
	res, err := t.client.BLPop(ctx, t.blockTimeout, t.key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("pop %s: %w", t.key, err)
	case len(res) < 2:
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Close closes the trigger connection.
func (t *Trigger) Close() error {
	return t.client.Close()
}
