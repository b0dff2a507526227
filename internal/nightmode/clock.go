// Package nightmode decides, from wall-clock time alone, whether night-mode
// actions are allowed.
//
// Boundaries (local time of the configured location):
//
//	22:00  entry window opens, night is active
//	03:30  last minute a user may enter (inclusive)
//	05:00  night ends, every session expires
//
// A session entered during the window stays valid until the next 05:00 or
// MaxSession after entry, whichever comes first.
package nightmode

import (
	"fmt"
	"time"
)

const (
	entryStartMinute = 22 * 60
	entryEndMinute   = 3*60 + 30
	dayStartHour     = 5
	nightStartHour   = 22

	// MaxSession caps a single night-mode session.
	MaxSession = 7 * time.Hour
)

type Phase int

const (
	Day Phase = iota
	EntryWindow
	FullNight
)

func (p Phase) String() string {
	switch p {
	case EntryWindow:
		return "entry_window"
	case FullNight:
		return "full_night"
	default:
		return "day"
	}
}

// PhaseAt classifies t in its own location.
func PhaseAt(t time.Time) Phase {
	m := t.Hour()*60 + t.Minute()
	switch {
	case m >= entryStartMinute || m <= entryEndMinute:
		return EntryWindow
	case t.Hour() < dayStartHour:
		return FullNight
	default:
		return Day
	}
}

// CanEnter reports whether a user may switch into night mode at t.
func CanEnter(t time.Time) bool {
	return PhaseAt(t) == EntryWindow
}

// IsActive reports whether night-only features are open at t.
func IsActive(t time.Time) bool {
	h := t.Hour()
	return h >= nightStartHour || h < dayStartHour
}

// NextDayStart returns the first 05:00 strictly after t.
func NextDayStart(t time.Time) time.Time {
	b := time.Date(t.Year(), t.Month(), t.Day(), dayStartHour, 0, 0, 0, t.Location())
	if !b.After(t) {
		b = time.Date(t.Year(), t.Month(), t.Day()+1, dayStartHour, 0, 0, 0, t.Location())
	}
	return b
}

// NextNightStart returns the first 22:00 strictly after t.
func NextNightStart(t time.Time) time.Time {
	b := time.Date(t.Year(), t.Month(), t.Day(), nightStartHour, 0, 0, 0, t.Location())
	if !b.After(t) {
		b = time.Date(t.Year(), t.Month(), t.Day()+1, nightStartHour, 0, 0, 0, t.Location())
	}
	return b
}

// SessionEnd is when a session entered at entered stops being valid.
func SessionEnd(entered time.Time) time.Time {
	end := NextDayStart(entered)
	if capped := entered.Add(MaxSession); capped.Before(end) {
		end = capped
	}
	return end
}

// SessionValid re-derives validity of a stored entry timestamp at now.
// Sessions whose entry was outside the window are never valid.
func SessionValid(entered *time.Time, now time.Time) bool {
	if entered == nil || entered.IsZero() {
		return false
	}
	e := entered.In(now.Location())
	if !CanEnter(e) || now.Before(e) {
		return false
	}
	return now.Before(SessionEnd(e))
}

// Info is the countdown shown to clients.
type Info struct {
	Phase              string `json:"phase"`
	IsActive           bool   `json:"isCurrentlyInNightMode"`
	InEntryWindow      bool   `json:"isInEntryWindow"`
	TimeUntilNightMode int64  `json:"timeUntilNightMode,omitempty"`
	TimeUntilDayMode   int64  `json:"timeUntilDayMode,omitempty"`
	FormattedRemaining string `json:"formattedTimeRemaining,omitempty"`
	CurrentHour        int    `json:"currentHour"`
	CurrentMinute      int    `json:"currentMinute"`
	Message            string `json:"message"`
}

// InfoAt builds the countdown for t. Durations are in milliseconds.
func InfoAt(t time.Time) Info {
	info := Info{
		Phase:         PhaseAt(t).String(),
		IsActive:      IsActive(t),
		InEntryWindow: CanEnter(t),
		CurrentHour:   t.Hour(),
		CurrentMinute: t.Minute(),
	}
	if info.IsActive {
		left := NextDayStart(t).Sub(t)
		info.TimeUntilDayMode = left.Milliseconds()
		info.FormattedRemaining = FormatRemaining(left)
		info.Message = "Night Mode Active - Day mode at 5:00 AM"
	} else {
		left := NextNightStart(t).Sub(t)
		info.TimeUntilNightMode = left.Milliseconds()
		info.FormattedRemaining = FormatRemaining(left)
		info.Message = "Night mode unlocks at 10:00 PM"
	}
	return info
}

// FormatRemaining renders d as "3h 12m", "4m 5s" or "9s".
func FormatRemaining(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Clock evaluates the rules in a fixed location against an injectable now.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

func (c *Clock) Phase() Phase   { return PhaseAt(c.Now()) }
func (c *Clock) CanEnter() bool { return CanEnter(c.Now()) }
func (c *Clock) IsActive() bool { return IsActive(c.Now()) }
func (c *Clock) Info() Info     { return InfoAt(c.Now()) }

func (c *Clock) SessionValid(entered *time.Time) bool {
	return SessionValid(entered, c.Now())
}
