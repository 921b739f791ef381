package ports

import (
	"context"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"
)

// DataSource is the upstream sports-data source. Every call is an expensive,
// possibly slow network round trip.
// Failures MUST wrap types.ErrUpstream.
type DataSource interface {
	GamesForToday(ctx context.Context) ([]types.Game, error)
	GameByID(ctx context.Context, gameID string) (types.Game, error)
	PlayByPlay(ctx context.Context, gameID string) ([]types.Action, error)
	Standings(ctx context.Context) ([]types.StandingRow, error)
}
