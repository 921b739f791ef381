package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/content"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/deferred"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/gate"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/refresh"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"
	"github.com/stretchr/testify/suite"
)

type recordingRenderer struct {
	mu     sync.Mutex
	items  []content.Item
	frames []content.Frame
	fail   error
}

func (r *recordingRenderer) Render(_ context.Context, _ ports.Canvas, item content.Item, frame content.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.items = append(r.items, item)
	r.frames = append(r.frames, frame)
	return nil
}

type countingTransitioner struct{ n int }

func (c *countingTransitioner) Transition(context.Context, ports.Canvas, content.Frame, content.Frame) error {
	c.n++
	return nil
}

type memPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (m *memPublisher) PublishRaw(_ context.Context, _ string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

type SchedulerTestSuite struct {
	suite.Suite
	settings *types.Settings
	store    *refresh.Store
	queue    *deferred.Queue
	renderer *recordingRenderer
	sched    *Scheduler
	now      time.Time
	slept    []time.Duration
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	cfg := types.DefaultConfig()
	cfg.FavoriteTeams = []string{"BBB", "AAA"}
	cfg.WakeTime, cfg.SleepTime = "", ""
	settings, err := cfg.Resolve()
	s.Require().NoError(err)
	s.settings = settings

	s.store = refresh.NewStore()
	s.queue = deferred.NewQueue()
	s.renderer = &recordingRenderer{}
	s.now = time.Date(2026, 10, 15, 0, 30, 0, 0, time.UTC)
	s.slept = nil

	s.sched = NewScheduler(settings, gate.New(settings.Window, nil), s.queue, s.store, s.renderer, Options{})
	s.sched.now = func() time.Time { return s.now }
	s.sched.sleep = func(_ context.Context, d time.Duration) error {
		s.slept = append(s.slept, d)
		return nil
	}
}

func team(code string) types.Team {
	return types.Team{TeamTricode: code}
}

func (s *SchedulerTestSuite) liveGame(id, away, home string) types.Game {
	return types.Game{
		GameID:      id,
		GameStatus:  types.GameLive,
		Period:      2,
		GameTimeUTC: s.now.Add(-time.Hour),
		AwayTeam:    team(away),
		HomeTeam:    team(home),
	}
}

func (s *SchedulerTestSuite) TestMostImportantLiveGameWins() {
	a := s.liveGame("A", "AAA", "XXX") // rank 2
	b := s.liveGame("B", "YYY", "BBB") // rank 1
	c := s.liveGame("C", "ZZZ", "QQQ") // unranked
	s.store.Set(KeyGamesToday, []types.Game{a, b, c})
	s.store.Set(KeyStandings, []types.StandingRow{{TeamName: "Standing", Rank: 1}})

	items, err := s.sched.Select(context.Background(), s.now)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	live, ok := items[0].(content.LiveGame)
	s.Require().True(ok)
	s.Equal("B", live.Game.GameID)
	s.True(live.Important)
}

func (s *SchedulerTestSuite) TestFollowedRecordOverridesSlate() {
	b := s.liveGame("B", "YYY", "BBB")
	s.store.Set(KeyGamesToday, []types.Game{b})
	final := b
	final.GameStatus = types.GameFinal
	s.store.Set(ImportantGameKey("B"), final)

	items, err := s.sched.Select(context.Background(), s.now)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.IsType(content.ScreenSaver{}, items[0])
	s.IsType(content.AfterGame{}, items[1])
}

func (s *SchedulerTestSuite) TestIdleRotationOrder() {
	before := types.Game{GameID: "G1", GameStatus: types.GameScheduled, GameTimeUTC: s.now.Add(2 * time.Hour), AwayTeam: team("AAA"), HomeTeam: team("XXX")}
	after := types.Game{GameID: "G2", GameStatus: types.GameFinal, GameTimeUTC: s.now.Add(-3 * time.Hour), AwayTeam: team("BBB"), HomeTeam: team("YYY")}
	row := types.StandingRow{TeamName: "S1", Rank: 1, Wins: 3, Losses: 1, WinPercent: 0.75}
	s.store.Set(KeyGamesToday, []types.Game{before, after})
	s.store.Set(KeyStandings, []types.StandingRow{row})

	items, err := s.sched.Select(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal([]content.Item{
		content.ScreenSaver{},
		content.BeforeGame{Game: before},
		content.AfterGame{Game: after},
		content.Standings{Row: row},
	}, items)
}

func (s *SchedulerTestSuite) TestEmptyStoreShowsScreensaver() {
	items, err := s.sched.Select(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal([]content.Item{content.ScreenSaver{}}, items)
}

func (s *SchedulerTestSuite) TestTickPresentsWithDurationsAndTransitions() {
	tr := &countingTransitioner{}
	s.sched.transitioner = tr
	s.store.Set(KeyStandings, []types.StandingRow{{TeamName: "S1", Rank: 1}, {TeamName: "S2", Rank: 2}})

	s.Require().NoError(s.sched.Tick(context.Background()))
	s.Len(s.renderer.items, 3)
	s.Equal(2, tr.n)
	s.Equal([]time.Duration{
		s.settings.Durations.ScreenSaver,
		s.settings.Durations.Standings,
		s.settings.Durations.Standings,
	}, s.slept)
	s.Equal(StatePresent, s.sched.State())
}

func (s *SchedulerTestSuite) TestTickRunsDueDeferredActions() {
	ran := 0
	s.queue.Schedule(s.now.Add(-time.Second), "due", func(context.Context) error {
		ran++
		return nil
	})
	s.queue.Schedule(s.now.Add(time.Hour), "later", func(context.Context) error {
		ran += 100
		return nil
	})
	s.Require().NoError(s.sched.Tick(context.Background()))
	s.Equal(1, ran)
	s.Equal(1, s.queue.Len())
}

func (s *SchedulerTestSuite) TestBadStoreValueDegrades() {
	s.store.Set(KeyGamesToday, "not games")
	s.Require().NoError(s.sched.Tick(context.Background()))
	s.Require().Len(s.renderer.items, 1)
	s.IsType(content.ScreenSaver{}, s.renderer.items[0])
}

func (s *SchedulerTestSuite) TestRenderFailureDegradesThenLogs() {
	s.renderer.fail = errors.New("matrix unplugged")
	s.NoError(s.sched.Tick(context.Background()))
}

func (s *SchedulerTestSuite) TestCancellationIsReturned() {
	ctx, cancel := context.WithCancel(context.Background())
	s.sched.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	err := s.sched.Run(ctx)
	s.ErrorIs(err, context.Canceled)
	s.True(IsContextErr(err))
	s.Len(s.renderer.items, 1)
}

func (s *SchedulerTestSuite) TestLiveAlertOncePerGame() {
	pub := &memPublisher{}
	s.sched.alerts = NewAlerter(pub, "arn:aws:sns:us-east-1:000000000000:scoreboard")
	s.store.Set(KeyGamesToday, []types.Game{s.liveGame("B", "YYY", "BBB")})

	for i := 0; i < 3; i++ {
		_, err := s.sched.Select(context.Background(), s.now)
		s.Require().NoError(err)
	}
	s.Len(pub.payloads, 1)
	s.Contains(string(pub.payloads[0]), `"gameId":"B"`)
	s.Contains(string(pub.payloads[0]), `"rank":1`)
}

func (s *SchedulerTestSuite) TestAlerterWithoutTopicIsNoop() {
	a := NewAlerter(&memPublisher{}, "")
	sent, err := a.GameLive(context.Background(), s.liveGame("B", "YYY", "BBB"), 1)
	s.NoError(err)
	s.False(sent)

	var nilAlerter *Alerter
	sent, err = nilAlerter.GameLive(context.Background(), types.Game{}, 1)
	s.NoError(err)
	s.False(sent)
}
