package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/content"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/deferred"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/refresh"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the read-only status endpoints. Every field is optional.
type Handler struct {
	Store         *refresh.Store
	Deferred      *deferred.Queue
	Subscriptions Subscriptions
	Frames        Frames
	State         func() string
	Registry      *prometheus.Registry
}

type Subscriptions interface {
	Live() []string
}

// Frames reports the last frame handed to the display.
type Frames interface {
	Last() (content.Kind, content.Frame)
}

type KeyStatus struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PendingAction struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

type FrameStatus struct {
	Kind  string   `json:"kind"`
	Lines []string `json:"lines"`
}

type Snapshot struct {
	State         string          `json:"state,omitempty"`
	Keys          []KeyStatus     `json:"keys"`
	Deferred      []PendingAction `json:"deferred"`
	Subscriptions []string        `json:"subscriptions"`
	LastFrame     *FrameStatus    `json:"last_frame,omitempty"`
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", h.handleSnapshot)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if h.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.Registry, promhttp.HandlerOpts{Registry: h.Registry}))
	}
	return mux
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := writeJSON(w, http.StatusOK, h.Snapshot()); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

// Snapshot collects the current controller state.
func (h *Handler) Snapshot() Snapshot {
	out := Snapshot{
		Keys:          []KeyStatus{},
		Deferred:      []PendingAction{},
		Subscriptions: []string{},
	}
	if h.State != nil {
		out.State = h.State()
	}
	if h.Store != nil {
		for key, e := range h.Store.Snapshot() {
			out.Keys = append(out.Keys, KeyStatus{Key: key, UpdatedAt: e.UpdatedAt})
		}
		sort.Slice(out.Keys, func(i, j int) bool { return out.Keys[i].Key < out.Keys[j].Key })
	}
	if h.Deferred != nil {
		for _, it := range h.Deferred.Pending() {
			out.Deferred = append(out.Deferred, PendingAction{ID: it.ID, Name: it.Name, At: it.At})
		}
	}
	if h.Subscriptions != nil {
		out.Subscriptions = append(out.Subscriptions, h.Subscriptions.Live()...)
	}
	if h.Frames != nil {
		kind, frame := h.Frames.Last()
		if len(frame.Lines) > 0 {
			out.LastFrame = &FrameStatus{Kind: content.KindTextMap[kind], Lines: frame.Lines}
		}
	}
	return out
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
