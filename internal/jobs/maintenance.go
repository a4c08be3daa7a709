package jobs

import (
	"context"
	"time"

	"github.com/kerosindigital/bsky.link/internal/logging"
)

// Purger drops expired cache entries and reports how many went.
type Purger interface {
	Purge() int
}

// Refresher keeps the upstream session valid.
type Refresher interface {
	EnsureFresh(ctx context.Context) error
}

// RunCachePurgeLoop purges expired entries on every tick until ctx is
// cancelled. Lookups already skip expired entries; this only returns
// their memory early.
func RunCachePurgeLoop(ctx context.Context, c Purger, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info("cache_purge_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if n := c.Purge(); n > 0 {
				logging.Debug("cache_purged", map[string]any{"expired": n})
			}
		}
	}
}

// RunSessionKeepalive checks the session on every tick, so the first
// request after an idle stretch does not wait on a refresh.
func RunSessionKeepalive(ctx context.Context, r Refresher, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info("session_keepalive_stop", nil)
			return ctx.Err()
		case <-t.C:
			if err := r.EnsureFresh(ctx); err != nil && ctx.Err() == nil {
				logging.Error("session_keepalive_error", map[string]any{"error": err.Error()})
			}
		}
	}
}
