// Package metrics exposes the controller's Prometheus collectors. A *Recorder
// satisfies every component Observer interface; a nil *Recorder records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "scoreboard"

type Recorder struct {
	registry *prometheus.Registry

	cacheRequests  *prometheus.CounterVec
	rateLimitWait  *prometheus.HistogramVec
	refreshCycles  *prometheus.CounterVec
	liveSubs       prometheus.Gauge
	gateSleep      prometheus.Counter
	schedulerState *prometheus.GaugeVec
	presentedItems *prometheus.CounterVec
	degradedTicks  prometheus.Counter
}

// New creates a recorder with its own registry, including Go runtime collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Windowed cache lookups by operation and result (hit, miss, error).",
		}, []string{"op", "result"}),
		rateLimitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ratelimit_wait_seconds",
			Help:      "Time admitted upstream calls spent waiting for rate-limit capacity.",
			Buckets:   []float64{0, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op"}),
		refreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Background refresh cycles by subscription key and result.",
		}, []string{"key", "result"}),
		liveSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_live_subscriptions",
			Help:      "Number of running background pollers.",
		}),
		gateSleep: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_sleep_seconds_total",
			Help:      "Total time the scheduler slept outside the active window.",
		}),
		schedulerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_state",
			Help:      "1 for the scheduler's current state, 0 otherwise.",
		}, []string{"state"}),
		presentedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presented_items_total",
			Help:      "Content items shown, by kind.",
		}, []string{"kind"}),
		degradedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_degraded_ticks_total",
			Help:      "Scheduler ticks that fell back to the screensaver.",
		}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cacheRequests, r.rateLimitWait, r.refreshCycles, r.liveSubs,
		r.gateSleep, r.schedulerState, r.presentedItems, r.degradedTicks,
	)
	return r
}

// Registry is the gatherer the status server serves.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) CacheHit(name string) {
	if r != nil {
		r.cacheRequests.WithLabelValues(name, "hit").Inc()
	}
}

func (r *Recorder) CacheMiss(name string) {
	if r != nil {
		r.cacheRequests.WithLabelValues(name, "miss").Inc()
	}
}

func (r *Recorder) CacheError(name string) {
	if r != nil {
		r.cacheRequests.WithLabelValues(name, "error").Inc()
	}
}

func (r *Recorder) RateLimitWait(op string, waited time.Duration) {
	if r != nil {
		r.rateLimitWait.WithLabelValues(op).Observe(waited.Seconds())
	}
}

func (r *Recorder) RefreshResult(key string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.refreshCycles.WithLabelValues(key, result).Inc()
}

func (r *Recorder) LiveSubscriptions(n int) {
	if r != nil {
		r.liveSubs.Set(float64(n))
	}
}

func (r *Recorder) GateSleep(d time.Duration) {
	if r != nil {
		r.gateSleep.Add(d.Seconds())
	}
}

func (r *Recorder) SchedulerState(state string) {
	if r == nil {
		return
	}
	r.schedulerState.Reset()
	r.schedulerState.WithLabelValues(state).Set(1)
}

func (r *Recorder) Presented(kind string) {
	if r != nil {
		r.presentedItems.WithLabelValues(kind).Inc()
	}
}

func (r *Recorder) Degraded() {
	if r != nil {
		r.degradedTicks.Inc()
	}
}
