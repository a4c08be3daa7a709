// Package cmdlog wraps CLI subcommands with outcome logging and counters.
package cmdlog

import (
	"time"

	"github.com/kerosindigital/bsky.link/internal/logging"
	"github.com/kerosindigital/bsky.link/internal/metrics"
)

func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	fields := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err.Error()
		logging.Error(cmd+"_error", fields)
	} else {
		logging.Info(cmd+"_ok", fields)
	}
	return err
}
