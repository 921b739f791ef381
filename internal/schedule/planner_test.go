package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/content"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/deferred"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/gate"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/refresh"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"
	"github.com/stretchr/testify/suite"
)

type stubSource struct {
	mu      sync.Mutex
	games   []types.Game
	byID    map[string]types.Game
	actions []types.Action
	calls   map[string]int
}

func (s *stubSource) record(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *stubSource) GamesForToday(context.Context) ([]types.Game, error) {
	s.record(types.OpGamesToday)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games, nil
}

func (s *stubSource) GameByID(_ context.Context, id string) (types.Game, error) {
	s.record(types.OpGame)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id], nil
}

func (s *stubSource) PlayByPlay(context.Context, string) ([]types.Action, error) {
	s.record(types.OpPlayByPlay)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions, nil
}

func (s *stubSource) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubSource) Standings(context.Context) ([]types.StandingRow, error) {
	s.record(types.OpStandings)
	return []types.StandingRow{{TeamName: "S1", Rank: 1}}, nil
}

func (s *stubSource) setGame(g types.Game) {
	s.mu.Lock()
	s.byID[g.GameID] = g
	s.mu.Unlock()
}

type PlannerTestSuite struct {
	suite.Suite
	src       *stubSource
	store     *refresh.Store
	refresher *refresh.Refresher
	queue     *deferred.Queue
	planner   *Planner
	settings  types.Settings
	now       time.Time
}

func TestPlannerTestSuite(t *testing.T) {
	suite.Run(t, new(PlannerTestSuite))
}

func (s *PlannerTestSuite) SetupTest() {
	cfg := types.DefaultConfig()
	cfg.FavoriteTeams = []string{"IND", "MIL"}
	cfg.WakeTime, cfg.SleepTime = "", ""
	resolved, err := cfg.Resolve()
	s.Require().NoError(err)
	settings := *resolved
	settings.Refresh.LiveGame = 10 * time.Millisecond
	s.settings = settings

	s.src = &stubSource{byID: map[string]types.Game{}, calls: map[string]int{}}
	s.store = refresh.NewStore()
	s.refresher = refresh.NewRefresher(s.store, nil, nil)
	s.queue = deferred.NewQueue()
	s.planner = NewPlanner(&settings, s.refresher, s.queue, s.src, gate.New(settings.Window, nil))
	s.now = time.Now().UTC()
	s.planner.now = func() time.Time { return s.now }
}

func (s *PlannerTestSuite) TearDownTest() {
	s.refresher.Stop()
}

func (s *PlannerTestSuite) game(id, away, home string, tip time.Time, status types.GameStatus) types.Game {
	return types.Game{GameID: id, GameStatus: status, GameTimeUTC: tip, AwayTeam: team(away), HomeTeam: team(home)}
}

func (s *PlannerTestSuite) TestPlanSchedulesImportantGamesOnce() {
	tip := s.now.Add(2 * time.Hour)
	games := []types.Game{
		s.game("ind", "IND", "BOS", tip, types.GameScheduled),
		s.game("other", "NYK", "BOS", tip, types.GameScheduled),
		s.game("done", "MIL", "CHI", s.now.Add(-3*time.Hour), types.GameFinal),
		s.game("started", "PHX", "MIL", s.now.Add(-time.Hour), types.GameLive),
	}

	s.Equal(2, s.planner.Plan(games))
	s.Equal(0, s.planner.Plan(games))
	s.True(s.planner.Planned("ind"))
	s.True(s.planner.Planned("started"))
	s.False(s.planner.Planned("other"))
	s.False(s.planner.Planned("done"))

	pending := s.queue.Pending()
	s.Require().Len(pending, 2)
	at := map[string]time.Time{}
	for _, it := range pending {
		at[it.Name] = it.At
	}
	s.Equal(tip, at[ImportantGameKey("ind")])
	s.Equal(s.now, at[ImportantGameKey("started")])
}

func (s *PlannerTestSuite) TestFollowPollsUntilFinal() {
	g := s.game("ind", "IND", "BOS", s.now.Add(-time.Hour), types.GameLive)
	s.src.setGame(g)
	s.planner.Plan([]types.Game{g})

	s.Equal(1, s.queue.RunDue(context.Background(), s.now))
	key := ImportantGameKey("ind")
	s.True(s.refresher.Running(key))

	final := g
	final.GameStatus = types.GameFinal
	s.src.setGame(final)

	deadline := time.Now().Add(time.Second)
	for s.refresher.Running(key) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.False(s.refresher.Running(key))
	latest, ok := refresh.Value[types.Game](s.store, key)
	s.True(ok)
	s.Equal(types.GameFinal, latest.GameStatus)
}

func (s *PlannerTestSuite) TestStartRegistersSubscriptions() {
	tip := s.now.Add(time.Hour)
	s.src.mu.Lock()
	s.src.games = []types.Game{s.game("ind", "IND", "BOS", tip, types.GameScheduled)}
	s.src.mu.Unlock()

	s.Require().NoError(s.planner.Start(context.Background()))
	s.ElementsMatch([]string{KeyGamesToday, KeyStandings, KeyLivePlanner}, s.refresher.Live())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_, hasGames := s.store.Get(KeyGamesToday)
		_, hasStandings := s.store.Get(KeyStandings)
		if hasGames && hasStandings && s.planner.Planned("ind") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	games, ok := refresh.Value[[]types.Game](s.store, KeyGamesToday)
	s.True(ok)
	s.Len(games, 1)
	s.True(s.planner.Planned("ind"))
	s.Equal(1, s.queue.Len())
}

func (s *PlannerTestSuite) TestFollowBehindClosedGateMakesNoUpstreamCalls() {
	wall := time.Now().UTC()
	window, err := types.NewActiveWindow(
		wall.Add(2*time.Hour).Format("15:04"),
		wall.Add(3*time.Hour).Format("15:04"),
		0, 0, time.UTC)
	s.Require().NoError(err)
	s.planner = NewPlanner(&s.settings, s.refresher, s.queue, s.src, gate.New(window, nil))
	s.planner.now = func() time.Time { return s.now }

	g := s.game("ind", "IND", "BOS", s.now.Add(-time.Hour), types.GameLive)
	s.src.setGame(g)
	started, err := s.planner.Follow(context.Background(), g)
	s.Require().NoError(err)
	s.True(started)

	time.Sleep(200 * time.Millisecond)
	s.True(s.refresher.Running(ImportantGameKey("ind")))
	s.Zero(s.src.count(types.OpGame))
	s.Zero(s.src.count(types.OpPlayByPlay))
}

func (s *PlannerTestSuite) TestFollowMarksGameEndedByPlayByPlay() {
	g := s.game("ind", "IND", "BOS", s.now.Add(-time.Hour), types.GameLive)
	s.src.setGame(g)
	s.src.mu.Lock()
	s.src.actions = []types.Action{{ActionNumber: 700, ActionType: types.GameEndActionType}}
	s.src.mu.Unlock()
	s.store.Set(KeyGamesToday, []types.Game{g})

	_, err := s.planner.Follow(context.Background(), g)
	s.Require().NoError(err)
	key := ImportantGameKey("ind")
	deadline := time.Now().Add(time.Second)
	for s.refresher.Running(key) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.False(s.refresher.Running(key))

	latest, ok := refresh.Value[types.Game](s.store, key)
	s.Require().True(ok)
	s.Equal(types.GameFinal, latest.GameStatus)

	sched := NewScheduler(&s.settings, gate.New(s.settings.Window, nil), s.queue, s.store, nil, Options{})
	items, err := sched.Select(context.Background(), s.now)
	s.Require().NoError(err)
	s.Require().NotEmpty(items)
	s.IsType(content.ScreenSaver{}, items[0])
}
