package daemon

import (
	"context"
	"time"

	"github.com/memoryctl/memoryctl/internal/facade"
)

// PeriodicJobs runs maintenance and cluster rebuilds on a fixed interval
// until ctx is cancelled. Intended to run in its own goroutine alongside
// the REST server in foreground daemon mode.
func PeriodicJobs(ctx context.Context, f *facade.Facade, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.RunMaintenance(false); err != nil {
				log.Warn("periodic maintenance failed", "error", err)
			}
			if _, err := f.RebuildClusters(); err != nil {
				log.Warn("periodic cluster rebuild failed", "error", err)
			}
		}
	}
}
