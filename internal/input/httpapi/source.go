package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"secsync/pkg/models"
)

const maxBodyBytes = 32 << 20

// Config configures the HTTP source.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	Headers           map[string]string
	RequestsPerSecond float64
	Burst             int
	Tokens            TokenSource
	// Transport overrides the underlying round tripper.
	Transport http.RoundTripper
}

// Source reads collection envelopes from the security REST API.
type Source struct {
	baseURL string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
}

// NewSource creates an HTTP source.
func NewSource(cfg Config) (*Source, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("remote base URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}

	var transport http.RoundTripper = cfg.Transport
	if cfg.Tokens != nil {
		transport = &AuthTransport{Tokens: cfg.Tokens, Base: cfg.Transport}
	}

	return &Source{
		baseURL: base,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Fetch requests the collection endpoint for kind.
func (s *Source) Fetch(ctx context.Context, kind models.Kind) (*models.Envelope, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+kind.Endpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, &models.StatusError{Code: resp.StatusCode, Status: statusText(resp)}
	}

	return models.DecodeEnvelope(body)
}

func statusText(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}
