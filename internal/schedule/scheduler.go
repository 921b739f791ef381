// Package schedule runs the top-level display loop and plans live-game polling.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/content"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/deferred"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/gate"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/rank"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/refresh"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	log "github.com/sirupsen/logrus"
)

// Shared store keys.
const (
	KeyGamesToday       = "gamesToday"
	KeyStandings        = "standings"
	KeyLivePlanner      = "livePlanner"
	importantGamePrefix = "importantGame "
)

// ImportantGameKey is the store key a followed game is polled under.
func ImportantGameKey(gameID string) string {
	return importantGamePrefix + gameID
}

type State int32

const (
	StateGated State = iota
	StateDispatchDeferred
	StateSelectContent
	StatePresent
)

var StateTextMap = map[State]string{
	StateGated:            "gated",
	StateDispatchDeferred: "dispatch_deferred",
	StateSelectContent:    "select_content",
	StatePresent:          "present",
}

func (s State) String() string {
	return StateTextMap[s]
}

// Observer is told about state changes, presented items and degraded ticks. Nil-safe.
type Observer interface {
	SchedulerState(state string)
	Presented(kind string)
	Degraded()
}

// Scheduler is the display loop: gate, deferred actions, selection, presentation.
type Scheduler struct {
	settings     *types.Settings
	gate         *gate.Gate
	queue        *deferred.Queue
	store        *refresh.Store
	ranker       *rank.Ranker
	renderer     ports.Renderer
	transitioner ports.Transitioner
	canvas       ports.Canvas
	alerts       *Alerter
	observer     Observer

	state atomic.Int32
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Options carries the optional collaborators.
type Options struct {
	Transitioner ports.Transitioner
	Canvas       ports.Canvas
	Alerts       *Alerter
	Observer     Observer
}

func NewScheduler(settings *types.Settings, g *gate.Gate, queue *deferred.Queue, store *refresh.Store, renderer ports.Renderer, opts Options) *Scheduler {
	return &Scheduler{
		settings:     settings,
		gate:         g,
		queue:        queue,
		store:        store,
		ranker:       rank.New(settings.FavoriteTeams),
		renderer:     renderer,
		transitioner: opts.Transitioner,
		canvas:       opts.Canvas,
		alerts:       opts.Alerts,
		observer:     opts.Observer,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run ticks until ctx is done and then returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	log.WithField("window", s.settings.Window.String()).Info("scheduler started")
	for {
		if err := s.Tick(ctx); err != nil {
			log.WithError(err).Info("scheduler stopped")
			return err
		}
	}
}

// Tick runs one pass of the state machine. A selection or presentation failure
// degrades the tick to a screensaver; only context errors are returned.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.setState(StateGated)
	if err := s.gate.SleepUntilActive(ctx); err != nil {
		return err
	}

	s.setState(StateDispatchDeferred)
	if n := s.queue.RunDue(ctx, s.now()); n > 0 {
		log.WithField("count", n).Debug("ran deferred actions")
	}

	s.setState(StateSelectContent)
	items, err := s.Select(ctx, s.now())
	if err == nil {
		s.setState(StatePresent)
		err = s.Present(ctx, items)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.WithError(err).Warn("tick degraded to screensaver")
	if s.observer != nil {
		s.observer.Degraded()
	}
	if err := s.Present(ctx, []content.Item{content.ScreenSaver{}}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Error("screensaver failed")
	}
	return nil
}

// Select chooses what to show. The most important live game wins on its own;
// otherwise the idle rotation is a screensaver, one slide per game in source
// order, then one slide per standings row.
func (s *Scheduler) Select(ctx context.Context, now time.Time) ([]content.Item, error) {
	games, err := lookup[[]types.Game](s.store, KeyGamesToday)
	if err != nil {
		return nil, err
	}

	// followed games carry a fresher record than the slate
	games = append([]types.Game(nil), games...)
	for i, g := range games {
		latest, err := lookup[types.Game](s.store, ImportantGameKey(g.GameID))
		if err != nil {
			return nil, err
		}
		if latest.GameID != "" {
			games[i] = latest
		}
	}

	for _, c := range s.ranker.Important(games) {
		g := c.Game
		if !g.IsLive(now) {
			continue
		}
		if s.alerts != nil {
			if _, err := s.alerts.GameLive(ctx, g, c.Rank); err != nil {
				log.WithError(err).WithField("game", g.GameID).Warn("live alert failed")
			}
		}
		return []content.Item{content.LiveGame{Game: g, Important: true}}, nil
	}

	standings, err := lookup[[]types.StandingRow](s.store, KeyStandings)
	if err != nil {
		return nil, err
	}
	items := make([]content.Item, 0, 1+len(games)+len(standings))
	items = append(items, content.ScreenSaver{})
	for _, g := range games {
		items = append(items, content.ForGame(g, now))
	}
	for _, r := range standings {
		items = append(items, content.Standings{Row: r})
	}
	return items, nil
}

// Present shows items in order, each for its own duration, with a transition
// between consecutive frames when a Transitioner is set.
func (s *Scheduler) Present(ctx context.Context, items []content.Item) error {
	var prev *content.Frame
	for _, it := range items {
		frame, err := content.Compose(it, s.now(), s.settings.Location)
		if err != nil {
			return err
		}
		if prev != nil && s.transitioner != nil {
			if err := s.transitioner.Transition(ctx, s.canvas, *prev, frame); err != nil {
				return fmt.Errorf("transition: %w", err)
			}
		}
		if err := s.renderer.Render(ctx, s.canvas, it, frame); err != nil {
			return fmt.Errorf("render %s: %w", it.Kind(), err)
		}
		if s.observer != nil {
			s.observer.Presented(it.Kind().String())
		}
		if err := s.sleep(ctx, content.Duration(it, s.settings.Durations)); err != nil {
			return err
		}
		prev = &frame
	}
	return nil
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	if s.observer != nil {
		s.observer.SchedulerState(st.String())
	}
}

// lookup returns the zero value when key is absent and an error when it holds
// something other than a T.
func lookup[T any](store *refresh.Store, key string) (T, error) {
	var zero T
	v, ok := store.Get(key)
	if !ok || v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("store key %q holds %T", key, v)
	}
	return t, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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

// IsContextErr reports whether err is a cancellation or deadline.
func IsContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
