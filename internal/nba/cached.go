package nba

import (
	"context"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/cache"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ratelimit"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"
)

type forceKey struct{}

// WithForceRefresh marks ctx so CachedSource calls always miss the cache.
func WithForceRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceKey{}, true)
}

func forced(ctx context.Context) bool {
	v, _ := ctx.Value(forceKey{}).(bool)
	return v
}

// CachedSource wraps a ports.DataSource with a windowed cache per operation.
// The rate limiter is only consulted on a cache miss.
type CachedSource struct {
	upstream ports.DataSource
	limiter  *ratelimit.Limiter
	ttl      map[string]time.Duration
	now      func() time.Time

	games      *cache.Windowed[struct{}, []types.Game]
	game       *cache.Windowed[string, types.Game]
	playByPlay *cache.Windowed[string, []types.Action]
	standings  *cache.Windowed[struct{}, []types.StandingRow]
}

func NewCachedSource(upstream ports.DataSource, limiter *ratelimit.Limiter, ops map[string]types.OperationSettings, observer cache.Observer) (*CachedSource, error) {
	s := &CachedSource{
		upstream: upstream,
		limiter:  limiter,
		ttl:      make(map[string]time.Duration, len(ops)),
		now:      time.Now,
	}
	for op, o := range ops {
		s.ttl[op] = o.CacheTTL
	}
	var err error
	if s.games, err = cache.NewWindowed[struct{}, []types.Game](types.OpGamesToday, size(ops, types.OpGamesToday), observer); err != nil {
		return nil, err
	}
	if s.game, err = cache.NewWindowed[string, types.Game](types.OpGame, size(ops, types.OpGame), observer); err != nil {
		return nil, err
	}
	if s.playByPlay, err = cache.NewWindowed[string, []types.Action](types.OpPlayByPlay, size(ops, types.OpPlayByPlay), observer); err != nil {
		return nil, err
	}
	if s.standings, err = cache.NewWindowed[struct{}, []types.StandingRow](types.OpStandings, size(ops, types.OpStandings), observer); err != nil {
		return nil, err
	}
	return s, nil
}

func size(ops map[string]types.OperationSettings, op string) int {
	if n := ops[op].CacheSize; n > 0 {
		return n
	}
	return 1
}

func (s *CachedSource) GamesForToday(ctx context.Context) ([]types.Game, error) {
	return through(ctx, s, s.games, types.OpGamesToday, struct{}{}, s.upstream.GamesForToday)
}

func (s *CachedSource) GameByID(ctx context.Context, gameID string) (types.Game, error) {
	return through(ctx, s, s.game, types.OpGame, gameID, func(ctx context.Context) (types.Game, error) {
		return s.upstream.GameByID(ctx, gameID)
	})
}

func (s *CachedSource) PlayByPlay(ctx context.Context, gameID string) ([]types.Action, error) {
	return through(ctx, s, s.playByPlay, types.OpPlayByPlay, gameID, func(ctx context.Context) ([]types.Action, error) {
		return s.upstream.PlayByPlay(ctx, gameID)
	})
}

func (s *CachedSource) Standings(ctx context.Context) ([]types.StandingRow, error) {
	return through(ctx, s, s.standings, types.OpStandings, struct{}{}, s.upstream.Standings)
}

func through[K comparable, V any](ctx context.Context, s *CachedSource, c *cache.Windowed[K, V], op string, key K, fetch func(context.Context) (V, error)) (V, error) {
	bucket := cache.Bucket(s.now(), s.ttl[op])
	if forced(ctx) {
		bucket = c.ForceBucket()
	}
	return c.Get(key, bucket, func() (V, error) {
		if s.limiter != nil {
			if err := s.limiter.Acquire(ctx, op); err != nil {
				var zero V
				return zero, err
			}
		}
		return fetch(ctx)
	})
}

// GameEnded reports whether g is over, consulting play-by-play when the game
// record alone is not conclusive.
func GameEnded(ctx context.Context, src ports.DataSource, g types.Game, now time.Time) (bool, error) {
	if g.HasEnded(now) {
		return true, nil
	}
	if !g.HasStarted(now) {
		return false, nil
	}
	actions, err := src.PlayByPlay(ctx, g.GameID)
	if err != nil {
		return false, err
	}
	for _, a := range actions {
		if a.ActionType == types.GameEndActionType {
			return true, nil
		}
	}
	return false, nil
}
