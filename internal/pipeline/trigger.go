package pipeline

import (
	"context"
	"strings"
	"time"

	"secsync/internal/logger"
	"secsync/pkg/models"
)

// RefreshTrigger yields refresh requests. Pop returns nil, nil when no
// request arrived before its own timeout.
type RefreshTrigger interface {
	Pop(ctx context.Context) ([]byte, error)
}

// ListenForRefresh force-refreshes collections on every request popped from
// trigger until ctx is done. A request names a kind, or "all".
func (p *SyncPipeline) ListenForRefresh(ctx context.Context, trigger RefreshTrigger) error {
	logger.Infof("Refresh trigger listener started")
	for {
		payload, err := trigger.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("Failed to pop refresh request: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		p.handleRefreshRequest(ctx, strings.ToLower(strings.TrimSpace(string(payload))))
	}
}

func (p *SyncPipeline) handleRefreshRequest(ctx context.Context, request string) {
	if request == "" || request == "all" {
		logger.Debugf("Refresh requested for all collections")
		p.refresh(ctx, true)
		return
	}
	kind, err := models.ParseKind(request)
	if err != nil {
		logger.Warnf("Ignoring refresh request %q: %v", request, err)
		return
	}
	logger.Debugf("Refresh requested for %s", kind)
	if _, err := p.Fetch(ctx, kind, true); err != nil && ctx.Err() == nil {
		logger.Warnf("Requested refresh of %s failed: %v", kind, err)
	}
}
