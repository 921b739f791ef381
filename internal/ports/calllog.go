package ports

import (
	"context"
	"time"
)

// CallLog records recent call timestamps per operation for the rate limiter.
// Implementations MUST make the check-and-record step atomic.
type CallLog interface {
	// TryAcquire records a call at now if fewer than maxCalls calls happened in the
	// trailing period and returns (true, 0, nil). Otherwise nothing is recorded and
	// retryAfter is how long until the oldest recorded call ages out.
	TryAcquire(ctx context.Context, op string, maxCalls int, period time.Duration, now time.Time) (ok bool, retryAfter time.Duration, err error)
}
