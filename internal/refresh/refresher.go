package refresh

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Subscription describes one background poller.
// Update is called once per cycle while Active reports true. Its result is
// optionally passed through Transform, written to the store under Key, mirrored
// when Persist is set, and finally handed to Consume.
type Subscription struct {
	Key       string
	Update    func(ctx context.Context) (any, error)
	Active    func() bool
	Frequency time.Duration
	Transform func(any) (any, error)
	Consume   func(any)
	// Seed is written to the store, even if Key is already polled, unless it is
	// nil or an empty slice or map.
	Seed    any
	Persist bool
	// Paused skips the update for one cycle without ending the poller.
	Paused func() bool
}

// Observer is told the outcome of every cycle. Nil-safe.
type Observer interface {
	RefreshResult(key string, ok bool)
	LiveSubscriptions(n int)
}

type handle struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// set under Refresher.mu by a Subscribe that raced the final Active check
	pending    *Subscription
	pendingCtx context.Context
}

func (h *handle) cancel() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Refresher runs at most one poller goroutine per key.
type Refresher struct {
	store    *Store
	mirror   *Mirror
	observer Observer

	mu      sync.Mutex
	running map[string]*handle
	stopped bool
	wg      sync.WaitGroup
}

// NewRefresher creates a refresher writing into store. mirror may be nil.
func NewRefresher(store *Store, mirror *Mirror, observer Observer) *Refresher {
	return &Refresher{
		store:    store,
		mirror:   mirror,
		observer: observer,
		running:  make(map[string]*handle),
	}
}

func (r *Refresher) Store() *Store { return r.store }

// Subscribe starts polling sub.Key on a new goroutine. If the key is already
// being polled nothing new is started and false is returned; a non-empty Seed is
// still applied. The poller ends when Active reports false, when Unsubscribe or
// Stop is called, or when ctx is done.
func (r *Refresher) Subscribe(ctx context.Context, sub Subscription) (bool, error) {
	if sub.Key == "" {
		return false, errors.New("subscription key is required")
	}
	if sub.Update == nil {
		return false, fmt.Errorf("subscription %s: update function is required", sub.Key)
	}
	if sub.Frequency <= 0 {
		return false, fmt.Errorf("subscription %s: frequency must be positive", sub.Key)
	}
	if sub.Active == nil {
		sub.Active = func() bool { return true }
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if hasSeed(sub.Seed) {
		r.store.Set(sub.Key, sub.Seed)
	}
	if h, ok := r.running[sub.Key]; ok {
		h.pending, h.pendingCtx = &sub, ctx
		log.WithField("key", sub.Key).Debug("subscription already running")
		return false, nil
	}
	r.start(ctx, sub)
	return true, nil
}

// start must be called with r.mu held.
func (r *Refresher) start(ctx context.Context, sub Subscription) {
	h := &handle{stop: make(chan struct{}), done: make(chan struct{})}
	r.running[sub.Key] = h
	r.wg.Add(1)
	go r.run(ctx, sub, h)
	r.reportLive()

	log.WithFields(log.Fields{"key": sub.Key, "frequency": sub.Frequency}).Info("subscription started")
}

// hasSeed reports whether v is a seed worth writing.
func hasSeed(v any) bool {
	if v == nil {
		return false
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

// Unsubscribe stops the poller for key without waiting a full cycle.
// It returns false if key was not being polled.
func (r *Refresher) Unsubscribe(key string) bool {
	r.mu.Lock()
	h, ok := r.running[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	<-h.done
	return true
}

func (r *Refresher) Running(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[key]
	return ok
}

// Live returns the polled keys sorted.
func (r *Refresher) Live() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.running))
	for k := range r.running {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Stop cancels every poller and waits for them to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	r.stopped = true
	for _, h := range r.running {
		h.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Wait blocks until every poller has exited on its own.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) run(ctx context.Context, sub Subscription, h *handle) {
	defer r.wg.Done()
	defer close(h.done)
	defer r.remove(sub.Key, h)

	logger := log.WithField("key", sub.Key)
	timer := time.NewTimer(sub.Frequency)
	defer timer.Stop()

	for {
		r.clearPending(h)
		if !r.active(sub) {
			logger.Info("subscription no longer active")
			r.finish(sub.Key, h)
			return
		}
		if sub.Paused != nil && sub.Paused() {
			logger.Debug("subscription paused")
		} else if err := r.cycle(ctx, sub); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Error("refresh failed")
			r.result(sub.Key, false)
		} else {
			r.result(sub.Key, true)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(sub.Frequency)
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			logger.Info("subscription cancelled")
			return
		case <-timer.C:
		}
	}
}

func (r *Refresher) active(sub Subscription) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("key", sub.Key).Errorf("active check panicked: %v", p)
			ok = false
		}
	}()
	return sub.Active()
}

func (r *Refresher) cycle(ctx context.Context, sub Subscription) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("update panicked: %v", p)
		}
	}()
	v, err := sub.Update(ctx)
	if err != nil {
		return err
	}
	if sub.Transform != nil {
		if v, err = sub.Transform(v); err != nil {
			return fmt.Errorf("transform: %w", err)
		}
	}
	r.store.Set(sub.Key, v)
	if sub.Persist && r.mirror != nil {
		if err := r.mirror.Save(ctx, sub.Key, v); err != nil {
			log.WithError(err).WithField("key", sub.Key).Warn("snapshot save failed")
		}
	}
	if sub.Consume != nil {
		sub.Consume(v)
	}
	return nil
}

func (r *Refresher) clearPending(h *handle) {
	r.mu.Lock()
	h.pending, h.pendingCtx = nil, nil
	r.mu.Unlock()
}

// finish drops h from the running set. A Subscribe that arrived during the
// last Active check gets a fresh poller so the key is not left unpolled.
func (r *Refresher) finish(key string, h *handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[key] != h {
		return
	}
	delete(r.running, key)
	if next := h.pending; next != nil && !r.stopped && h.pendingCtx.Err() == nil {
		log.WithField("key", key).Info("restarting subscription")
		r.start(h.pendingCtx, *next)
		return
	}
	r.reportLive()
}

func (r *Refresher) remove(key string, h *handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[key] == h {
		delete(r.running, key)
	}
	r.reportLive()
}

func (r *Refresher) result(key string, ok bool) {
	if r.observer != nil {
		r.observer.RefreshResult(key, ok)
	}
}

// reportLive must be called with r.mu held.
func (r *Refresher) reportLive() {
	if r.observer != nil {
		r.observer.LiveSubscriptions(len(r.running))
	}
}
