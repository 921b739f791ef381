// Package cache memoizes expensive upstream calls per quantized time bucket.
//
// A Windowed cache stores values under (key, bucket). Callers pass the bucket,
// normally Bucket(now, ttl), so every call inside the same TTL slice shares one
// computed value. ForceBucket hands out unique negative buckets that never
// collide with a real one, which turns a lookup into a guaranteed miss.
//
// Concurrent misses on the same (key, bucket) collapse into a single compute.
// Failed computes are not stored.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Bucket returns floor(now / ttl).
func Bucket(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		ttl = time.Nanosecond
	}
	n := now.UnixNano()
	b := n / int64(ttl)
	if n < 0 && n%int64(ttl) != 0 {
		b--
	}
	return b
}

type entryKey[K comparable] struct {
	Key    K
	Bucket int64
}

// Observer receives hit/miss/error notifications. Nil-safe.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
	CacheError(name string)
}

// Windowed is a bounded LRU of (key, bucket) -> value with single-flight computes.
type Windowed[K comparable, V any] struct {
	name     string
	entries  *lru.Cache[entryKey[K], V]
	flight   singleflight.Group
	forced   atomic.Int64
	observer Observer
}

// NewWindowed creates a cache holding at most size (key, bucket) pairs.
func NewWindowed[K comparable, V any](name string, size int, observer Observer) (*Windowed[K, V], error) {
	entries, err := lru.New[entryKey[K], V](size)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}
	return &Windowed[K, V]{name: name, entries: entries, observer: observer}, nil
}

func (c *Windowed[K, V]) Name() string { return c.name }

// ForceBucket returns a bucket strictly lower than any bucket handed out before.
func (c *Windowed[K, V]) ForceBucket() int64 {
	return -c.forced.Add(1)
}

// Get returns the value stored under (key, bucket), running compute on a miss.
// compute runs at most once per (key, bucket) while the entry stays resident.
func (c *Windowed[K, V]) Get(key K, bucket int64, compute func() (V, error)) (V, error) {
	ek := entryKey[K]{Key: key, Bucket: bucket}
	if v, ok := c.entries.Get(ek); ok {
		c.hit()
		return v, nil
	}

	out, err, _ := c.flight.Do(flightKey(ek), func() (any, error) {
		// Another flight may have stored the value between the first lookup and Do.
		if v, ok := c.entries.Get(ek); ok {
			c.hit()
			return v, nil
		}
		c.miss()
		v, err := compute()
		if err != nil {
			c.failed()
			return nil, err
		}
		c.entries.Add(ek, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := out.(V)
	return v, nil
}

// Peek returns a stored value without touching recency or computing.
func (c *Windowed[K, V]) Peek(key K, bucket int64) (V, bool) {
	return c.entries.Peek(entryKey[K]{Key: key, Bucket: bucket})
}

func (c *Windowed[K, V]) Len() int {
	return c.entries.Len()
}

func (c *Windowed[K, V]) Purge() {
	c.entries.Purge()
}

func flightKey[K comparable](ek entryKey[K]) string {
	return fmt.Sprintf("%#v|%d", ek.Key, ek.Bucket)
}

func (c *Windowed[K, V]) hit() {
	if c.observer != nil {
		c.observer.CacheHit(c.name)
	}
}

func (c *Windowed[K, V]) miss() {
	if c.observer != nil {
		c.observer.CacheMiss(c.name)
	}
}

func (c *Windowed[K, V]) failed() {
	if c.observer != nil {
		c.observer.CacheError(c.name)
	}
}
