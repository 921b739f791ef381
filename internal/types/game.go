package types

import "time"

// GameStatus mirrors the upstream `gameStatus` field.
type GameStatus int

const (
	GameScheduled GameStatus = 1
	GameLive      GameStatus = 2
	GameFinal     GameStatus = 3
)

// MaxGameLength is how long after tip-off a game is assumed to be over regardless of upstream status.
const MaxGameLength = 4 * time.Hour

// Team is one side of a game as reported by the live scoreboard.
type Team struct {
	TeamID      int    `json:"teamId"`
	TeamName    string `json:"teamName"`
	TeamCity    string `json:"teamCity"`
	TeamTricode string `json:"teamTricode"`
	Score       int    `json:"score"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
}

// Game is a single game from the live scoreboard or boxscore endpoints.
type Game struct {
	GameID         string     `json:"gameId"`
	GameCode       string     `json:"gameCode"`
	GameStatus     GameStatus `json:"gameStatus"`
	GameStatusText string     `json:"gameStatusText"`
	Period         int        `json:"period"`
	GameClock      string     `json:"gameClock"`
	GameTimeUTC    time.Time  `json:"gameTimeUTC"`
	HomeTeam       Team       `json:"homeTeam"`
	AwayTeam       Team       `json:"awayTeam"`
}

// Teams returns away then home, the order the upstream lists them in.
func (g Game) Teams() []Team {
	return []Team{g.AwayTeam, g.HomeTeam}
}

// HasStarted reports whether tip-off is at or before now.
func (g Game) HasStarted(now time.Time) bool {
	if g.GameStatus >= GameLive {
		return true
	}
	return !g.GameTimeUTC.IsZero() && !now.Before(g.GameTimeUTC)
}

// HasEnded reports whether the game is over using only the game record itself.
// Play-by-play evidence is checked separately by the nba package.
func (g Game) HasEnded(now time.Time) bool {
	if g.GameStatus == GameFinal {
		return true
	}
	return !g.GameTimeUTC.IsZero() && now.After(g.GameTimeUTC.Add(MaxGameLength))
}

func (g Game) IsLive(now time.Time) bool {
	return g.HasStarted(now) && !g.HasEnded(now)
}

// Action is a single play-by-play entry.
type Action struct {
	ActionNumber int    `json:"actionNumber"`
	Clock        string `json:"clock"`
	Period       int    `json:"period"`
	ActionType   string `json:"actionType"`
	SubType      string `json:"subType"`
	Description  string `json:"description"`
	ScoreHome    string `json:"scoreHome"`
	ScoreAway    string `json:"scoreAway"`
	TeamTricode  string `json:"teamTricode"`
}

// GameEndActionType is the play-by-play action the upstream emits once a game is over.
const GameEndActionType = "game"

// StandingRow is one ranked row of the league standings.
type StandingRow struct {
	TeamID     int     `json:"teamId"`
	TeamName   string  `json:"teamName"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinPercent float64 `json:"winPercent"`
	Rank       int     `json:"rank"`
}
