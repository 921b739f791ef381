// Package nba talks to the public NBA live-data and stats endpoints.
package nba

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	"github.com/flowchartsman/retry"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	scoreboardPath = "/scoreboard/todaysScoreboard_00.json"
	boxscorePath   = "/boxscore/boxscore_%s.json"
	playByPlayPath = "/playbyplay/playbyplay_%s.json"
	standingsPath  = "/leaguestandingsv3"

	maxBodyBytes = 8 << 20
)

// stats.nba.com drops requests that do not look like they come from a browser.
var statsHeaders = map[string]string{
	"User-Agent":         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Referer":            "https://www.nba.com/",
	"Origin":             "https://www.nba.com",
	"Accept":             "application/json, text/plain, */*",
	"x-nba-stats-origin": "stats",
	"x-nba-stats-token":  "true",
}

// Client implements ports.DataSource over HTTP. Every failure wraps types.ErrUpstream.
type Client struct {
	http     *http.Client
	live     string
	stats    string
	season   string
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

// NewClient builds a client from settings. A nil httpClient gets one with the
// configured timeout.
func NewClient(s types.UpstreamSettings, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: s.Timeout}
	}
	return &Client{
		http:     httpClient,
		live:     s.LiveBaseURL,
		stats:    s.StatsBaseURL,
		season:   s.Season,
		attempts: s.Retries + 1,
		backoff:  500 * time.Millisecond,
		now:      time.Now,
	}
}

type scoreboardResponse struct {
	Scoreboard struct {
		GameDate string       `json:"gameDate"`
		Games    []types.Game `json:"games"`
	} `json:"scoreboard"`
}

type boxscoreResponse struct {
	Game types.Game `json:"game"`
}

type playByPlayResponse struct {
	Game struct {
		GameID  string         `json:"gameId"`
		Actions []types.Action `json:"actions"`
	} `json:"game"`
}

func (c *Client) GamesForToday(ctx context.Context) ([]types.Game, error) {
	var resp scoreboardResponse
	if err := c.getJSON(ctx, c.live+scoreboardPath, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scoreboard.Games, nil
}

func (c *Client) GameByID(ctx context.Context, gameID string) (types.Game, error) {
	var resp boxscoreResponse
	u := c.live + fmt.Sprintf(boxscorePath, url.PathEscape(gameID))
	if err := c.getJSON(ctx, u, nil, &resp); err != nil {
		return types.Game{}, err
	}
	if resp.Game.GameID == "" {
		return types.Game{}, types.Err(types.ErrUpstream, types.ErrNotFound, "game %s", gameID)
	}
	return resp.Game, nil
}

func (c *Client) PlayByPlay(ctx context.Context, gameID string) ([]types.Action, error) {
	var resp playByPlayResponse
	u := c.live + fmt.Sprintf(playByPlayPath, url.PathEscape(gameID))
	if err := c.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Game.Actions, nil
}

// Standings returns the league table ordered by win percentage, then wins,
// ranked from 1.
func (c *Client) Standings(ctx context.Context) ([]types.StandingRow, error) {
	q := url.Values{}
	q.Set("LeagueID", "00")
	q.Set("Season", c.currentSeason())
	q.Set("SeasonType", "Regular Season")

	var raw map[string]any
	if err := c.getJSON(ctx, c.stats+standingsPath+"?"+q.Encode(), statsHeaders, &raw); err != nil {
		return nil, err
	}
	rows, err := standingsFromResultSets(raw)
	if err != nil {
		return nil, types.Err(types.ErrUpstream, err, "standings")
	}
	return RankStandings(rows), nil
}

// RankStandings sorts rows by win percentage then wins, both descending, and
// assigns ranks from 1.
func RankStandings(rows []types.StandingRow) []types.StandingRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].WinPercent != rows[j].WinPercent {
			return rows[i].WinPercent > rows[j].WinPercent
		}
		return rows[i].Wins > rows[j].Wins
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// currentSeason is the configured season, or the one in progress at now
// ("2026-27" from October onward).
func (c *Client) currentSeason() string {
	if c.season != "" {
		return c.season
	}
	return SeasonFor(c.now())
}

func SeasonFor(t time.Time) string {
	y := t.Year()
	if t.Month() < time.October {
		y--
	}
	return fmt.Sprintf("%d-%02d", y, (y+1)%100)
}

func (c *Client) getJSON(ctx context.Context, u string, headers map[string]string, out any) error {
	logger := log.WithField("url", u)
	retrier := retry.NewRetrier(c.attempts, c.backoff, 4*c.backoff)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			logger.WithError(err).Debug("upstream request failed")
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			logger.WithField("status", resp.StatusCode).Debug("upstream returned non-200")
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return json.Unmarshal(body, out)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.Err(types.ErrUpstream, err, "GET %s", u)
	}
	return nil
}
