// Package gate keeps the controller inside its configured operating window.
package gate

import (
	"context"
	"time"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	log "github.com/sirupsen/logrus"
)

// SettleMargin is added to every computed wait so re-evaluation lands safely
// inside the window.
const SettleMargin = 30 * time.Second

// Observer is told about every sleep the gate takes. Nil-safe.
type Observer interface {
	GateSleep(d time.Duration)
}

type Gate struct {
	window   types.ActiveWindow
	observer Observer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(window types.ActiveWindow, observer Observer) *Gate {
	if window.Location == nil {
		window.Location = time.UTC
	}
	return &Gate{
		window:   window,
		observer: observer,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func (g *Gate) Window() types.ActiveWindow { return g.window }

// Active reports whether now is inside every configured half of the window.
func (g *Gate) Active(now time.Time) bool {
	now = now.In(g.window.Location)
	return g.inDays(now) && g.inTime(now)
}

// ActiveNow is Active at the gate's clock.
func (g *Gate) ActiveNow() bool {
	return g.Active(g.now())
}

// Until returns how long from now until the next instant that might be
// active, or zero when now is already active. When the day window is closed the
// result is the next local midnight of the start day; the time window is
// re-checked after that.
func (g *Gate) Until(now time.Time) time.Duration {
	now = now.In(g.window.Location)
	var next time.Time
	switch {
	case !g.inDays(now):
		ahead := (g.window.StartDay - types.ISOWeekday(now.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		day := now.AddDate(0, 0, ahead)
		next = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, g.window.Location)
	case !g.inTime(now):
		next = g.window.StartTime.On(now, g.window.Location)
		if !next.After(now) {
			next = g.window.StartTime.On(now.AddDate(0, 0, 1), g.window.Location)
		}
	default:
		return 0
	}
	// a DST jump can put next behind now
	if d := next.Sub(now); d > 0 {
		return d
	}
	return 0
}

// SleepUntilActive blocks until the window is open. Every wait has
// SettleMargin added and is followed by a fresh evaluation. It returns
// ctx.Err() if ctx ends first.
func (g *Gate) SleepUntilActive(ctx context.Context) error {
	for {
		now := g.now()
		if g.Active(now) {
			return nil
		}
		d := g.Until(now) + SettleMargin
		log.WithFields(log.Fields{
			"window":   g.window.String(),
			"until":    now.Add(d).In(g.window.Location).Format(time.RFC3339),
			"duration": d,
		}).Info("outside active window, sleeping")
		if g.observer != nil {
			g.observer.GateSleep(d)
		}
		if err := g.sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (g *Gate) inTime(now time.Time) bool {
	if !g.window.HasTimeWindow() {
		return true
	}
	return inside(now.Hour()*60+now.Minute(), g.window.StartTime.Minutes(), g.window.StopTime.Minutes())
}

func (g *Gate) inDays(now time.Time) bool {
	if !g.window.HasDayWindow() {
		return true
	}
	return inside(types.ISOWeekday(now.Weekday()), g.window.StartDay, g.window.StopDay)
}

// inside applies [start, stop) with wrap-around when start > stop.
func inside(v, start, stop int) bool {
	if start > stop {
		return v >= start || v < stop
	}
	return v >= start && v < stop
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
