// Package ratelimit bounds the call rate of named upstream operations.
// Acquire blocks until the operation has capacity; it never drops a call.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Observer is told how long each admitted call waited. Nil-safe.
type Observer interface {
	RateLimitWait(op string, waited time.Duration)
}

// Limiter admits calls per operation according to a types.RateLimit policy.
// Window policies are backed by a ports.CallLog, bucket policies by x/time/rate.
type Limiter struct {
	calls    ports.CallLog
	policies map[string]types.RateLimit
	observer Observer

	mu      sync.Mutex
	buckets map[string]*rate.Limiter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter. A nil callLog defaults to an in-process log.
func New(policies map[string]types.RateLimit, callLog ports.CallLog, observer Observer) *Limiter {
	if callLog == nil {
		callLog = NewMemoryCallLog()
	}
	return &Limiter{
		calls:    callLog,
		policies: policies,
		observer: observer,
		buckets:  make(map[string]*rate.Limiter),
		now:      time.Now,
		sleep:    Sleep,
	}
}

// PoliciesFromSettings extracts the per-operation limits.
func PoliciesFromSettings(s *types.Settings) map[string]types.RateLimit {
	out := make(map[string]types.RateLimit, len(s.Operations))
	for op, settings := range s.Operations {
		out[op] = settings.RateLimit
	}
	return out
}

// Acquire blocks until op may be called, then records the call.
// Operations without a policy are not limited.
// When the policy has a WaitTimeout and it elapses, types.ErrRateLimitTimeout is returned.
func (l *Limiter) Acquire(ctx context.Context, op string) error {
	p, ok := l.policies[op]
	if !ok || p.MaxCalls <= 0 {
		return nil
	}
	parent := ctx
	if p.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.WaitTimeout)
		defer cancel()
	}

	start := l.now()
	var err error
	if p.Algorithm == types.AlgorithmBucket {
		err = l.bucket(op, p).Wait(ctx)
	} else {
		err = l.window(ctx, op, p)
	}
	if err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		if isDeadline(err) {
			return types.Err(types.ErrRateLimitTimeout, err, "operation %s", op)
		}
		return err
	}

	waited := l.now().Sub(start)
	if waited > 0 {
		log.WithFields(log.Fields{"op": op, "waited": waited}).Debug("rate limit wait")
	}
	if l.observer != nil {
		l.observer.RateLimitWait(op, waited)
	}
	return nil
}

func (l *Limiter) window(ctx context.Context, op string, p types.RateLimit) error {
	for {
		ok, retryAfter, err := l.calls.TryAcquire(ctx, op, p.MaxCalls, p.Period, l.now())
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if retryAfter <= 0 {
			retryAfter = time.Millisecond
		}
		if err := l.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

func (l *Limiter) bucket(op string, p types.RateLimit) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[op]
	if !ok {
		b = rate.NewLimiter(rate.Every(p.Period/time.Duration(p.MaxCalls)), p.MaxCalls)
		l.buckets[op] = b
	}
	return b
}

func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// rate.Limiter.Wait refuses up front when the deadline is too close.
	return strings.Contains(err.Error(), "would exceed context deadline")
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
