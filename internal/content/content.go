// Package content defines the closed set of things the display can show and how
// each one is composed into a text frame.
package content

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"
)

type Kind int

const (
	KindScreenSaver Kind = iota
	KindBeforeGame
	KindAfterGame
	KindLiveGame
	KindStandings
)

var KindTextMap = map[Kind]string{
	KindScreenSaver: "screensaver",
	KindBeforeGame:  "before_game",
	KindAfterGame:   "after_game",
	KindLiveGame:    "live_game",
	KindStandings:   "standings",
}

func (k Kind) String() string {
	if s, ok := KindTextMap[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Item is one slide. Only the types in this package implement it.
type Item interface {
	Kind() Kind
	isItem()
}

type ScreenSaver struct{}

type BeforeGame struct {
	Game types.Game
}

type AfterGame struct {
	Game types.Game
}

// LiveGame is an in-progress game. Important is set when it was selected
// because it involves a favorite team.
type LiveGame struct {
	Game      types.Game
	Important bool
}

type Standings struct {
	Row types.StandingRow
}

func (ScreenSaver) Kind() Kind { return KindScreenSaver }
func (BeforeGame) Kind() Kind  { return KindBeforeGame }
func (AfterGame) Kind() Kind   { return KindAfterGame }
func (LiveGame) Kind() Kind    { return KindLiveGame }
func (Standings) Kind() Kind   { return KindStandings }

func (ScreenSaver) isItem() {}
func (BeforeGame) isItem()  {}
func (AfterGame) isItem()   {}
func (LiveGame) isItem()    {}
func (Standings) isItem()   {}

// ForGame picks the before/after/live slide for a game at now.
func ForGame(g types.Game, now time.Time) Item {
	switch {
	case !g.HasStarted(now):
		return BeforeGame{Game: g}
	case g.HasEnded(now):
		return AfterGame{Game: g}
	default:
		return LiveGame{Game: g}
	}
}

// Frame is the composed text of a slide, one entry per matrix row of text.
type Frame struct {
	Lines []string
}

func (f Frame) String() string {
	return strings.Join(f.Lines, " | ")
}

// Compose renders item into a frame. Times are shown in loc.
func Compose(item Item, now time.Time, loc *time.Location) (Frame, error) {
	switch it := item.(type) {
	case ScreenSaver:
		return Frame{Lines: []string{"NBA", now.In(loc).Format("3:04 PM")}}, nil
	case BeforeGame:
		g := it.Game
		return Frame{Lines: []string{
			fmt.Sprintf("%s @ %s", g.AwayTeam.TeamTricode, g.HomeTeam.TeamTricode),
			g.GameTimeUTC.In(loc).Format("Mon 3:04 PM"),
			record(g.AwayTeam),
			record(g.HomeTeam),
		}}, nil
	case AfterGame:
		g := it.Game
		return Frame{Lines: []string{
			score(g.AwayTeam),
			score(g.HomeTeam),
			"FINAL",
		}}, nil
	case LiveGame:
		g := it.Game
		status := fmt.Sprintf("Q%d %s", g.Period, FormatGameClock(g.GameClock))
		if g.Period > 4 {
			status = fmt.Sprintf("OT%d %s", g.Period-4, FormatGameClock(g.GameClock))
		}
		if it.Important {
			status = "* " + status
		}
		return Frame{Lines: []string{score(g.AwayTeam), score(g.HomeTeam), status}}, nil
	case Standings:
		r := it.Row
		return Frame{Lines: []string{
			fmt.Sprintf("#%d %s", r.Rank, r.TeamName),
			fmt.Sprintf("%d-%d", r.Wins, r.Losses),
			strings.TrimPrefix(strconv.FormatFloat(r.WinPercent, 'f', 3, 64), "0"),
		}}, nil
	default:
		return Frame{}, types.Err(types.ErrUnknownRenderItem, nil, "%T", item)
	}
}

// Duration is how long item stays on screen.
func Duration(item Item, d types.DurationSettings) time.Duration {
	switch item.(type) {
	case BeforeGame:
		return d.BeforeGame
	case AfterGame:
		return d.AfterGame
	case LiveGame:
		return d.LiveGame
	case Standings:
		return d.Standings
	default:
		return d.ScreenSaver
	}
}

func record(t types.Team) string {
	return fmt.Sprintf("%s %d-%d", t.TeamTricode, t.Wins, t.Losses)
}

func score(t types.Team) string {
	return fmt.Sprintf("%s %d", t.TeamTricode, t.Score)
}

var gameClockRe = regexp.MustCompile(`^PT(\d+)M(\d+)(?:\.\d+)?S$`)

// FormatGameClock turns the upstream ISO-8601 clock ("PT05M32.00S") into "5:32".
// Unrecognized values are returned as-is.
func FormatGameClock(clock string) string {
	m := gameClockRe.FindStringSubmatch(clock)
	if m == nil {
		return clock
	}
	minutes, _ := strconv.Atoi(m[1])
	seconds, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
