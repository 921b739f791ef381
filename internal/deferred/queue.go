// Package deferred holds one-shot actions waiting for their trigger time.
package deferred

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Action runs once when its trigger time has passed.
type Action func(ctx context.Context) error

// Item is a queued action.
type Item struct {
	ID     string
	Name   string
	At     time.Time
	Action Action

	seq uint64
}

// Queue is safe for concurrent Schedule and DrainDue.
type Queue struct {
	mu    sync.Mutex
	items []Item
	seq   uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

// Schedule enqueues fn to run at or after at and returns its ID.
func (q *Queue) Schedule(at time.Time, name string, fn Action) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	it := Item{ID: uuid.NewString(), Name: name, At: at, Action: fn, seq: q.seq}
	q.items = append(q.items, it)
	log.WithFields(log.Fields{"id": it.ID, "name": name, "at": at.Format(time.RFC3339)}).Debug("action scheduled")
	return it.ID
}

// DrainDue removes and returns every item with At <= now, earliest first and
// enqueue order on ties. Later items are left untouched.
func (q *Queue) DrainDue(now time.Time) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []Item
	kept := q.items[:0]
	for _, it := range q.items {
		if it.At.After(now) {
			kept = append(kept, it)
			continue
		}
		due = append(due, it)
	}
	// zero the tail so dropped actions can be collected
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = Item{}
	}
	q.items = kept
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].At.Equal(due[j].At) {
			return due[i].seq < due[j].seq
		}
		return due[i].At.Before(due[j].At)
	})
	return due
}

// RunDue drains due items and invokes each. Failures are logged and do not
// stop the remaining items. It returns how many ran.
func (q *Queue) RunDue(ctx context.Context, now time.Time) int {
	due := q.DrainDue(now)
	for _, it := range due {
		logger := log.WithFields(log.Fields{"id": it.ID, "name": it.Name})
		if err := it.Action(ctx); err != nil {
			logger.WithError(err).Error("deferred action failed")
			continue
		}
		logger.Debug("deferred action ran")
	}
	return len(due)
}

// Cancel removes the item with id. It returns false if it was not queued.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a copy of the queued items in enqueue order.
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}
