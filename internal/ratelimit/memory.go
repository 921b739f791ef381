package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCallLog is an in-process sliding window log.
type MemoryCallLog struct {
	mu    sync.Mutex
	calls map[string][]time.Time
}

func NewMemoryCallLog() *MemoryCallLog {
	return &MemoryCallLog{calls: make(map[string][]time.Time)}
}

// TryAcquire drops timestamps at least period old, then admits the call if
// fewer than maxCalls remain.
func (m *MemoryCallLog) TryAcquire(_ context.Context, op string, maxCalls int, period time.Duration, now time.Time) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.calls[op][:0]
	var oldest time.Time
	for _, t := range m.calls[op] {
		if now.Sub(t) >= period {
			continue
		}
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
		live = append(live, t)
	}

	if len(live) < maxCalls {
		m.calls[op] = append(live, now)
		return true, 0, nil
	}
	m.calls[op] = live
	return false, oldest.Add(period).Sub(now), nil
}

// Recent returns how many calls of op are inside the trailing period.
func (m *MemoryCallLog) Recent(op string, period time.Duration, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.calls[op] {
		if now.Sub(t) < period {
			n++
		}
	}
	return n
}
