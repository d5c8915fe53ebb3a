// Package timewindow implements the legal quiet-hour clamp and the
// engagement-window nudge applied to every compiled send time.
package timewindow

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Legal contact hours: [LegalStartHour, LegalEndHour) local time
	LegalStartHour = 8
	LegalEndHour   = 20

	// Out-of-hours sends are rescheduled to this local hour
	RescheduleHour = 9
)

// DefaultTimezone is substituted when a lead's zone name fails to load.
// Configurable via SetDefaultTimezone.
var DefaultTimezone = "America/New_York"

// SetDefaultTimezone replaces the fallback zone. Names that fail to load
// are rejected so the fallback itself always resolves.
func SetDefaultTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return err
	}
	DefaultTimezone = tz
	return nil
}

// Window is a preferred local sub-window inside the legal range, believed
// to yield higher response rates.
type Window struct {
	StartHour int
	EndHour   int
}

// DefaultWindows are the late-morning and early-evening engagement windows.
var DefaultWindows = []Window{
	{StartHour: 10, EndHour: 12},
	{StartHour: 17, EndHour: 19},
}

// Contains reports whether the local hour falls inside the window.
func (w Window) Contains(hour int) bool {
	return hour >= w.StartHour && hour < w.EndHour
}

// Location resolves an IANA zone name, substituting DefaultTimezone for
// anything that fails to load. Bad zone data must never fail a compile.
func Location(tz string) *time.Location {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"timezone": tz,
			"fallback": DefaultTimezone,
		}).Warn("unrecognized timezone, using default")
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			return time.UTC
		}
	}
	return loc
}

// Legalize clamps t into legal contact hours in the lead's zone and returns
// the result in UTC. Hours inside [8,20) pass through unchanged; at or
// after 20:00 moves to 09:00 the next day; before 08:00 moves to 09:00 the
// same day. Idempotent.
func Legalize(t time.Time, tz string) time.Time {
	loc := Location(tz)
	local := t.In(loc)

	hour := local.Hour()
	switch {
	case hour >= LegalStartHour && hour < LegalEndHour:
		return t.UTC()
	case hour >= LegalEndHour:
		next := local.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), RescheduleHour, 0, 0, 0, loc).UTC()
	default:
		return time.Date(local.Year(), local.Month(), local.Day(), RescheduleHour, 0, 0, 0, loc).UTC()
	}
}

// IsAllowedNow reports whether t is inside legal hours in the lead's zone.
// When it is not, the second return value is the next allowed time under
// the same boundary rule.
func IsAllowedNow(t time.Time, tz string) (bool, time.Time) {
	loc := Location(tz)
	hour := t.In(loc).Hour()
	if hour >= LegalStartHour && hour < LegalEndHour {
		return true, t.UTC()
	}
	return false, Legalize(t, tz)
}

// PreferWindow nudges an already-legalized time forward into the nearest
// upcoming engagement window that same local day, with a few minutes of
// jitter so batches do not land on the exact hour. If the local hour is
// already inside a window, or no window remains today, the time is
// returned unchanged. The nudge never crosses a day boundary.
func PreferWindow(legalized time.Time, tz string, windows []Window) time.Time {
	if len(windows) == 0 {
		return legalized
	}

	loc := Location(tz)
	local := legalized.In(loc)
	hour := local.Hour()

	for _, w := range windows {
		if w.Contains(hour) {
			return legalized
		}
	}

	best := -1
	for _, w := range windows {
		if w.StartHour > hour && (best == -1 || w.StartHour < best) {
			best = w.StartHour
		}
	}
	if best == -1 {
		// No window remains today; window preference never pushes a send
		// into tomorrow.
		return legalized
	}

	jitter := rand.Intn(15)
	return time.Date(local.Year(), local.Month(), local.Day(), best, jitter, 0, 0, loc).UTC()
}
