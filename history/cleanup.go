package history

import (
	"context"
	"log/slog"
	"time"
)

// RunCleanup purges entries older than maxAge every interval until ctx is
// done.
func RunCleanup(ctx context.Context, store Store, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(ctx, maxAge)
			if err != nil {
				slog.Warn("[History] Cleanup failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				slog.Info("[History] Removed old entries", slog.Int64("count", removed))
			}
		}
	}
}
