// Package refresh holds the shared keyed store and the background pollers that
// keep it populated.
package refresh

import (
	"sort"
	"sync"
	"time"
)

// Entry is a committed value and when it was written.
type Entry struct {
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store maps subscription keys to their most recent value. Readers always see a
// whole committed value; the last writer of a key wins.
type Store struct {
	mu   sync.RWMutex
	data map[string]Entry
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{data: make(map[string]Entry), now: time.Now}
}

func (s *Store) Set(key string, v any) {
	s.mu.Lock()
	s.data[key] = Entry{Value: v, UpdatedAt: s.now()}
	s.mu.Unlock()
}

func (s *Store) Get(key string) (any, bool) {
	e, ok := s.Entry(key)
	return e.Value, ok
}

func (s *Store) Entry(key string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	return e, ok
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Keys returns the stored keys sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot copies the current entries.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Value returns the value under key when it is present and of type T.
func Value[T any](s *Store, key string) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
