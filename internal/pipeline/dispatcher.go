package pipeline

import (
	"context"
	"errors"
	"time"

	"secsync/internal/logger"
	"secsync/internal/metrics"
	"secsync/pkg/models"
)

const (
	writeAttempts = 3
	drainTimeout  = 5 * time.Second
)

// Dispatcher buffers diagnostics on a bounded channel and writes them in
// batches. Report never blocks; events are dropped when the buffer is full.
type Dispatcher struct {
	writer        DiagnosticsWriter
	events        chan *models.Diagnostic
	batchSize     int
	flushInterval time.Duration
	retryDelay    time.Duration
}

// NewDispatcher creates a dispatcher in front of writer.
func NewDispatcher(writer DiagnosticsWriter, bufferSize, batchSize int, flushInterval time.Duration) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Dispatcher{
		writer:        writer,
		events:        make(chan *models.Diagnostic, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryDelay:    time.Second,
	}
}

// Report queues an event.
func (d *Dispatcher) Report(event *models.Diagnostic) {
	if event == nil {
		return
	}
	select {
	case d.events <- event:
	default:
		metrics.DiagnosticsDropped.Inc()
		logger.Debugf("Diagnostics buffer full, dropped %s event for %s", event.Class, event.Kind)
	}
}

// Run writes queued events until ctx is done, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	var batch []*models.Diagnostic

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		for attempt := 1; ; attempt++ {
			err := d.writer.WriteDiagnostics(ctx, batch)
			if err == nil {
				metrics.DiagnosticsWritten.Add(float64(len(batch)))
				break
			}
			logger.Errorf("Failed to write diagnostics: %v", err)
			if attempt >= writeAttempts || errors.Is(err, models.ErrBatchRejected) {
				metrics.DiagnosticsDropped.Add(float64(len(batch)))
				break
			}
			select {
			case <-ctx.Done():
				metrics.DiagnosticsDropped.Add(float64(len(batch)))
				batch = nil
				return
			case <-time.After(d.retryDelay):
			}
		}
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case event := <-d.events:
					batch = append(batch, event)
				default:
					break drain
				}
			}
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			flush(drainCtx)
			cancel()
			return
		case <-ticker.C:
			flush(ctx)
		case event := <-d.events:
			batch = append(batch, event)
			if len(batch) >= d.batchSize {
				flush(ctx)
			}
		}
	}
}

// Close closes the underlying writer.
func (d *Dispatcher) Close() error {
	if d.writer == nil {
		return nil
	}
	return d.writer.Close()
}
