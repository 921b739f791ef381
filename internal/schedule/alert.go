package schedule

import (
	"context"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	mapset "github.com/deckarep/golang-set/v2"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// LiveAlert is the message published when a followed game goes live on screen.
type LiveAlert struct {
	Event    string    `json:"event"`
	GameID   string    `json:"gameId"`
	Away     string    `json:"away"`
	Home     string    `json:"home"`
	Rank     int       `json:"rank"`
	TipOff   time.Time `json:"tipOff"`
	Detected time.Time `json:"detected"`
}

// Alerter publishes at most one LiveAlert per game.
type Alerter struct {
	pub  ports.Publisher
	arn  string
	sent mapset.Set[string]
	now  func() time.Time
}

func NewAlerter(pub ports.Publisher, arn string) *Alerter {
	return &Alerter{pub: pub, arn: arn, sent: mapset.NewSet[string](), now: time.Now}
}

// GameLive publishes the alert for g unless it was already sent. It reports
// whether a message went out.
func (a *Alerter) GameLive(ctx context.Context, g types.Game, rank int) (bool, error) {
	if a == nil || a.pub == nil || a.arn == "" {
		return false, nil
	}
	if !a.sent.Add(g.GameID) {
		return false, nil
	}
	payload, err := json.Marshal(LiveAlert{
		Event:    "game_live",
		GameID:   g.GameID,
		Away:     g.AwayTeam.TeamTricode,
		Home:     g.HomeTeam.TeamTricode,
		Rank:     rank,
		TipOff:   g.GameTimeUTC,
		Detected: a.now().UTC(),
	})
	if err != nil {
		return false, err
	}
	if err := a.pub.PublishRaw(ctx, a.arn, payload); err != nil {
		a.sent.Remove(g.GameID)
		return false, err
	}
	log.WithFields(log.Fields{"game": g.GameID, "rank": rank}).Info("live alert published")
	return true, nil
}
