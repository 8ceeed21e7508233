package diagclickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"secsync/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer inserts diagnostics into ClickHouse via HTTP JSONEachRow.
type Writer struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// row is the table layout. Timestamps use the DateTime64(3) text format.
type row struct {
	ID         string `json:"id"`
	Timestamp  string `json:"ts"`
	Kind       string `json:"kind"`
	Class      string `json:"class"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Attempts   int    `json:"attempts"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail"`
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "secsync_diagnostics"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// WriteDiagnostics inserts one row per event.
func (w *Writer) WriteDiagnostics(ctx context.Context, events []*models.Diagnostic) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	n := 0
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := enc.Encode(toRow(event)); err != nil {
			return fmt.Errorf("failed to marshal diagnostic: %w", err)
		}
		n++
	}
	if n == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(respBody))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: clickhouse status %s: %s", models.ErrBatchRejected, resp.Status, msg)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, msg)
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

func toRow(d *models.Diagnostic) row {
	return row{
		ID:         d.ID,
		Timestamp:  d.Timestamp.UTC().Format("2006-01-02 15:04:05.000"),
		Kind:       string(d.Kind),
		Class:      d.Class,
		StatusCode: d.StatusCode,
		Message:    d.Message,
		Attempts:   d.Attempts,
		Outcome:    d.Outcome,
		Detail:     d.Detail,
	}
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
