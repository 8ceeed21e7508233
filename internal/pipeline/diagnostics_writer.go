package pipeline

import (
	"context"

	"secsync/pkg/models"
)

// DiagnosticsWriter writes batches of failure events. Writers wrap
// models.ErrBatchRejected when retrying a batch is pointless.
type DiagnosticsWriter interface {
	WriteDiagnostics(ctx context.Context, events []*models.Diagnostic) error
	Close() error
}
