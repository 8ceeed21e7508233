package diaghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"secsync/pkg/models"
)

// Config configures the collector endpoint.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Writer posts each diagnostics batch to a collector as a success envelope,
// the same {status, data, timestamp} shape the remote API serves.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
	now     func() time.Time
}

// NewWriter creates a collector writer.
func NewWriter(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("diagnostics collector URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

// WriteDiagnostics posts events. A 4xx answer other than 408 and 429 wraps
// models.ErrBatchRejected.
func (w *Writer) WriteDiagnostics(ctx context.Context, events []*models.Diagnostic) error {
	batch := make([]*models.Diagnostic, 0, len(events))
	for _, event := range events {
		if event != nil {
			batch = append(batch, event)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	body, err := w.encode(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post diagnostics: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return classify(resp)
}

func (w *Writer) encode(batch []*models.Diagnostic) ([]byte, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal diagnostics: %w", err)
	}
	total := len(batch)
	env := models.Envelope{
		Status:    models.EnvelopeSuccess,
		Data:      data,
		Timestamp: w.now().UTC().Format(time.RFC3339),
		Metadata:  &models.EnvelopeMetadata{Total: &total},
	}
	return json.Marshal(env)
}

func classify(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	statusErr := &models.StatusError{Code: code, Status: resp.Status}
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return statusErr
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: %v", models.ErrBatchRejected, statusErr)
	default:
		return statusErr
	}
}

// Close releases idle connections.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
