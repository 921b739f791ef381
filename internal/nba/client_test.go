package nba

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"
	"github.com/stretchr/testify/suite"
)

const scoreboardJSON = `{
  "meta": {"version": 1},
  "scoreboard": {
    "gameDate": "2026-10-14",
    "games": [
      {
        "gameId": "0022600001",
        "gameCode": "20261014/MILIND",
        "gameStatus": 2,
        "gameStatusText": "Q2 5:32",
        "period": 2,
        "gameClock": "PT05M32.00S",
        "gameTimeUTC": "2026-10-14T23:00:00Z",
        "homeTeam": {"teamId": 1610612754, "teamName": "Pacers", "teamCity": "Indiana", "teamTricode": "IND", "wins": 1, "losses": 0, "score": 55},
        "awayTeam": {"teamId": 1610612749, "teamName": "Bucks", "teamCity": "Milwaukee", "teamTricode": "MIL", "wins": 0, "losses": 1, "score": 50}
      }
    ]
  }
}`

const playByPlayJSON = `{
  "game": {
    "gameId": "0022600001",
    "actions": [
      {"actionNumber": 1, "clock": "PT12M00.00S", "period": 1, "actionType": "period", "subType": "start", "scoreHome": "0", "scoreAway": "0"},
      {"actionNumber": 600, "clock": "PT00M00.00S", "period": 4, "actionType": "game", "subType": "end", "description": "Game End", "scoreHome": "110", "scoreAway": "101"}
    ]
  }
}`

const standingsJSON = `{
  "resource": "leaguestandingsv3",
  "resultSets": [
    {
      "name": "Standings",
      "headers": ["LeagueID", "SeasonID", "TeamID", "TeamCity", "TeamName", "WINS", "LOSSES", "WinPCT"],
      "rowSet": [
        ["00", "22026", 1, "Chicago", "Bulls", 40, 42, 0.488],
        ["00", "22026", 2, "Indiana", "Pacers", 50, 32, 0.610],
        ["00", "22026", 3, "Utah", "Jazz", 49, 31, 0.610],
        ["00", "22026", 4, "Atlanta", "Hawks", 60, 22, 0.732]
      ]
    }
  ]
}`

type ClientTestSuite struct {
	suite.Suite
	srv    *httptest.Server
	mux    *http.ServeMux
	client *Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.srv = httptest.NewServer(s.mux)
	s.client = NewClient(types.UpstreamSettings{
		LiveBaseURL:  s.srv.URL + "/live",
		StatsBaseURL: s.srv.URL + "/stats",
		Timeout:      time.Second,
		Retries:      2,
	}, nil)
	s.client.backoff = time.Millisecond
}

func (s *ClientTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *ClientTestSuite) TestGamesForToday() {
	s.mux.HandleFunc("/live/scoreboard/todaysScoreboard_00.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scoreboardJSON))
	})
	games, err := s.client.GamesForToday(context.Background())
	s.Require().NoError(err)
	s.Require().Len(games, 1)
	g := games[0]
	s.Equal("0022600001", g.GameID)
	s.Equal(types.GameLive, g.GameStatus)
	s.Equal("IND", g.HomeTeam.TeamTricode)
	s.Equal(50, g.AwayTeam.Score)
	s.Equal(time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC), g.GameTimeUTC.UTC())
}

func (s *ClientTestSuite) TestGameByID() {
	s.mux.HandleFunc("/live/boxscore/boxscore_0022600001.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"game": {"gameId": "0022600001", "gameStatus": 3, "homeTeam": {"teamTricode": "IND", "score": 110}}}`))
	})
	s.mux.HandleFunc("/live/boxscore/boxscore_empty.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"game": {}}`))
	})

	g, err := s.client.GameByID(context.Background(), "0022600001")
	s.Require().NoError(err)
	s.Equal(types.GameFinal, g.GameStatus)
	s.Equal(110, g.HomeTeam.Score)

	_, err = s.client.GameByID(context.Background(), "empty")
	s.ErrorIs(err, types.ErrUpstream)
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *ClientTestSuite) TestPlayByPlay() {
	s.mux.HandleFunc("/live/playbyplay/playbyplay_0022600001.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(playByPlayJSON))
	})
	actions, err := s.client.PlayByPlay(context.Background(), "0022600001")
	s.Require().NoError(err)
	s.Require().Len(actions, 2)
	s.Equal(types.GameEndActionType, actions[1].ActionType)
	s.Equal("110", actions[1].ScoreHome)
}

func (s *ClientTestSuite) TestStandingsRankedWithBrowserHeaders() {
	s.mux.HandleFunc("/stats/leaguestandingsv3", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") == "" || r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		s.Equal("2026-27", r.URL.Query().Get("Season"))
		s.Equal("00", r.URL.Query().Get("LeagueID"))
		_, _ = w.Write([]byte(standingsJSON))
	})
	s.client.now = func() time.Time { return time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC) }

	rows, err := s.client.Standings(context.Background())
	s.Require().NoError(err)
	s.Require().Len(rows, 4)

	names := []string{rows[0].TeamName, rows[1].TeamName, rows[2].TeamName, rows[3].TeamName}
	s.Equal([]string{"Atlanta Hawks", "Indiana Pacers", "Utah Jazz", "Chicago Bulls"}, names)
	for i, r := range rows {
		s.Equal(i+1, r.Rank)
	}
	s.Equal(4, rows[0].TeamID)
	s.Equal(60, rows[0].Wins)
	s.Equal(22, rows[0].Losses)
	s.InDelta(0.732, rows[0].WinPercent, 1e-9)
}

func (s *ClientTestSuite) TestStandingsMissingColumn() {
	s.mux.HandleFunc("/stats/leaguestandingsv3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultSets": [{"name": "Standings", "headers": ["TeamID"], "rowSet": []}]}`))
	})
	_, err := s.client.Standings(context.Background())
	s.ErrorIs(err, types.ErrUpstream)
}

func (s *ClientTestSuite) TestRetriesThenUpstreamError() {
	var hits atomic.Int32
	s.mux.HandleFunc("/live/scoreboard/todaysScoreboard_00.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := s.client.GamesForToday(context.Background())
	s.ErrorIs(err, types.ErrUpstream)
	s.Equal(int32(3), hits.Load())
}

func (s *ClientTestSuite) TestRetryRecovers() {
	var hits atomic.Int32
	s.mux.HandleFunc("/live/scoreboard/todaysScoreboard_00.json", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			_, _ = w.Write([]byte(`{not json`))
			return
		}
		_, _ = w.Write([]byte(scoreboardJSON))
	})
	games, err := s.client.GamesForToday(context.Background())
	s.Require().NoError(err)
	s.Len(games, 1)
	s.Equal(int32(2), hits.Load())
}

func (s *ClientTestSuite) TestCancelledContextIsNotUpstream() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.client.GamesForToday(ctx)
	s.Error(err)
	s.False(errors.Is(err, types.ErrUpstream))
}

func (s *ClientTestSuite) TestSeasonFor() {
	cases := map[string]time.Time{
		"2026-27": time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		"2025-26": time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		"2099-00": time.Date(2099, 12, 25, 0, 0, 0, 0, time.UTC),
	}
	for want, at := range cases {
		s.Equal(want, SeasonFor(at), fmt.Sprint(at))
	}
}
