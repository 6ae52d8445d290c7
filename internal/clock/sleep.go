// Package clock provides time helpers that respect context cancellation.
package clock

import (
	"context"
	"time"
)

// SleepWithContext blocks for d or until ctx is done, whichever comes
// first. It returns the context error when interrupted.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
