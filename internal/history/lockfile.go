package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	lockSuffix = ".lock"

	// lockRetry is the wait between attempts on a held lock
	lockRetry = 20 * time.Millisecond
	// lockStaleAfter is the age at which a lock left by a dead process is taken over
	lockStaleAfter = 2 * time.Minute
)

// acquireLockFile takes the <INSTRUMENT>.lock file shared by every process
// writing the same history directory. The file is created exclusively and
// holds the owner's pid; release removes it. Waiting respects ctx.
func acquireLockFile(ctx context.Context, path string, logger *slog.Logger) (func(), error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			logger.WarnContext(ctx, "Removing stale history lock",
				slog.String("path", path),
				slog.Time("locked_at", info.ModTime()))
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to remove stale lock %s: %w", path, err)
			}
			continue
		}

		timer := time.NewTimer(lockRetry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for lock file %s: %w", path, ctx.Err())
		case <-timer.C:
		}
	}
}
