package types

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time without a date, minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "H:MM" or "HH:MM" in 24h format.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, Err(ErrConfig, err, "invalid time of day %q", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns the instant of t on the calendar day of d in loc.
func (t TimeOfDay) On(d time.Time, loc *time.Location) time.Time {
	d = d.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ISOWeekday converts a time.Weekday to Monday=1 .. Sunday=7.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// ActiveWindow is the configured operating window. The time-of-day and
// day-of-week halves are optional and independent. A half where Start > Stop
// wraps past midnight/Sunday.
type ActiveWindow struct {
	StartTime *TimeOfDay
	StopTime  *TimeOfDay
	StartDay  int // ISO weekday, 0 when unset
	StopDay   int
	Location  *time.Location
}

// NewActiveWindow builds a window from the active-from (wake) and active-until
// (sleep) values. Empty strings and zero days leave that half unset.
func NewActiveWindow(wakeTime, sleepTime string, wakeDay, sleepDay int, loc *time.Location) (ActiveWindow, error) {
	w := ActiveWindow{Location: loc}
	if loc == nil {
		w.Location = time.UTC
	}

	if (wakeTime == "") != (sleepTime == "") {
		return ActiveWindow{}, configErr("wake_time and sleep_time must be set together")
	}
	if wakeTime != "" {
		start, err := ParseTimeOfDay(wakeTime)
		if err != nil {
			return ActiveWindow{}, err
		}
		stop, err := ParseTimeOfDay(sleepTime)
		if err != nil {
			return ActiveWindow{}, err
		}
		if start == stop {
			return ActiveWindow{}, configErr("wake_time and sleep_time must be different")
		}
		w.StartTime, w.StopTime = &start, &stop
	}

	if (wakeDay == 0) != (sleepDay == 0) {
		return ActiveWindow{}, configErr("wake_day and sleep_day must be set together")
	}
	if wakeDay != 0 {
		if wakeDay < 1 || wakeDay > 7 || sleepDay < 1 || sleepDay > 7 {
			return ActiveWindow{}, configErr("wake_day and sleep_day must be between 1 (Monday) and 7 (Sunday)")
		}
		if wakeDay == sleepDay {
			return ActiveWindow{}, configErr("wake_day and sleep_day must be different")
		}
		w.StartDay, w.StopDay = wakeDay, sleepDay
	}
	return w, nil
}

func (w ActiveWindow) HasTimeWindow() bool {
	return w.StartTime != nil && w.StopTime != nil
}

func (w ActiveWindow) HasDayWindow() bool {
	return w.StartDay != 0 && w.StopDay != 0
}

func (w ActiveWindow) String() string {
	s := "always"
	if w.HasTimeWindow() {
		s = fmt.Sprintf("%s-%s", w.StartTime, w.StopTime)
	}
	if w.HasDayWindow() {
		s += fmt.Sprintf(" days %d-%d", w.StartDay, w.StopDay)
	}
	return s
}
