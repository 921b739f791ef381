package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/deferred"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/gate"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/nba"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/rank"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/refresh"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"
)

// Planner owns the background subscriptions: today's games, standings, and
// one short-interval poller per important game starting at its tip-off.
type Planner struct {
	settings  *types.Settings
	refresher *refresh.Refresher
	queue     *deferred.Queue
	source    ports.DataSource
	ranker    *rank.Ranker
	gate      *gate.Gate

	planned mapset.Set[string]
	now     func() time.Time
}

func NewPlanner(settings *types.Settings, refresher *refresh.Refresher, queue *deferred.Queue, source ports.DataSource, g *gate.Gate) *Planner {
	return &Planner{
		settings:  settings,
		refresher: refresher,
		queue:     queue,
		source:    source,
		ranker:    rank.New(settings.FavoriteTeams),
		gate:      g,
		planned:   mapset.NewSet[string](),
		now:       time.Now,
	}
}

// Start registers the long-running subscriptions.
func (p *Planner) Start(ctx context.Context) error {
	paused := func() bool { return !p.gate.ActiveNow() }
	subs := []refresh.Subscription{
		{
			Key:       KeyGamesToday,
			Frequency: p.settings.Refresh.GamesToday,
			Persist:   true,
			Paused:    paused,
			Update: func(ctx context.Context) (any, error) {
				return p.source.GamesForToday(ctx)
			},
			Consume: func(v any) {
				if games, ok := v.([]types.Game); ok {
					p.Plan(games)
				}
			},
		},
		{
			Key:       KeyStandings,
			Frequency: p.settings.Refresh.Standings,
			Persist:   true,
			Paused:    paused,
			Update: func(ctx context.Context) (any, error) {
				return p.source.Standings(ctx)
			},
		},
		{
			// once a day, bypass the cache so a new slate of games is planned
			Key:       KeyLivePlanner,
			Frequency: p.settings.Refresh.Planner,
			Update: func(ctx context.Context) (any, error) {
				games, err := p.source.GamesForToday(nba.WithForceRefresh(ctx))
				if err != nil {
					return nil, err
				}
				return p.Plan(games), nil
			},
		},
	}
	for _, sub := range subs {
		if _, err := p.refresher.Subscribe(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// Plan schedules a follow action at tip-off for every important game not
// planned before and not already over. It returns how many were scheduled.
func (p *Planner) Plan(games []types.Game) int {
	now := p.now()
	n := 0
	for _, c := range p.ranker.Important(games) {
		g := c.Game
		if g.HasEnded(now) || !p.planned.Add(g.GameID) {
			continue
		}
		at := g.GameTimeUTC
		if at.Before(now) {
			at = now
		}
		p.queue.Schedule(at, ImportantGameKey(g.GameID), func(ctx context.Context) error {
			_, err := p.Follow(ctx, g)
			return err
		})
		log.WithFields(log.Fields{"game": g.GameID, "rank": c.Rank, "at": at.Format(time.RFC3339)}).Info("live updates planned")
		n++
	}
	return n
}

// Follow polls g under ImportantGameKey until it has ended.
func (p *Planner) Follow(ctx context.Context, g types.Game) (bool, error) {
	key := ImportantGameKey(g.GameID)
	latest := &followed{game: g}
	return p.refresher.Subscribe(ctx, refresh.Subscription{
		Key:       key,
		Frequency: p.settings.Refresh.LiveGame,
		Seed:      g,
		Paused:    func() bool { return !p.gate.ActiveNow() },
		Update: func(ctx context.Context) (any, error) {
			return p.source.GameByID(ctx, g.GameID)
		},
		Consume: func(v any) {
			if next, ok := v.(types.Game); ok {
				latest.set(next)
			}
		},
		Active: func() bool {
			now := p.now()
			current := latest.get()
			// no upstream calls while the gate is closed
			if !p.gate.ActiveNow() {
				return !current.HasEnded(now)
			}
			ended, err := nba.GameEnded(ctx, p.source, current, now)
			if err != nil {
				log.WithError(err).WithField("game", g.GameID).Debug("end check failed")
				return true
			}
			if ended && !current.HasEnded(now) {
				p.markEnded(key, current)
			}
			return !ended
		},
	})
}

// markEnded stores g as final once play-by-play shows it is over, so the
// scheduler stops treating it as live.
func (p *Planner) markEnded(key string, g types.Game) {
	g.GameStatus = types.GameFinal
	g.GameStatusText = "Final"
	p.refresher.Store().Set(key, g)
	log.WithField("game", g.GameID).Info("game ended per play-by-play")
}

// Planned reports whether gameID has been scheduled.
func (p *Planner) Planned(gameID string) bool {
	return p.planned.Contains(gameID)
}

type followed struct {
	mu   sync.Mutex
	game types.Game
}

func (f *followed) get() types.Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.game
}

func (f *followed) set(g types.Game) {
	f.mu.Lock()
	f.game = g
	f.mu.Unlock()
}
