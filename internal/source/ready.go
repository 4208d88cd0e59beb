package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrReadyTimeout is returned by WaitReady when the probe never succeeds.
var ErrReadyTimeout = errors.New("document not ready")

const (
	DefaultReadyInterval = 100 * time.Millisecond
	DefaultReadyTimeout  = 10 * time.Second
)

// Probe reports whether the document is available.
type Probe func(ctx context.Context) bool

// WaitReady polls probe every interval until it returns true or timeout
// elapses. The probe is tried once immediately. There is no retry after
// ErrReadyTimeout.
func WaitReady(ctx context.Context, probe Probe, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = DefaultReadyInterval
	}
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if probe(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("after %s: %w", timeout, ErrReadyTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FileProbe reports whether path can be read by f.
func FileProbe(f FileFetcher) Probe {
	return func(ctx context.Context) bool {
		_, err := f.Fetch(ctx, "", "", "")
		return err == nil
	}
}
