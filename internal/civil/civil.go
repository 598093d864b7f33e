// Package civil anchors every day-boundary and scheduling computation to one
// fixed civil timezone.
//
// A "day" is a civil date in that timezone. Two instants are on the same day when
// their dates match after conversion; the distance between two instants in days is
// the number of dates crossed, independent of how many hours elapsed.
package civil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock supplies the current instant expressed in the civil timezone.
type Clock struct {
	base clockwork.Clock
	loc  *time.Location
}

// NewClock wraps base so that Now reports instants in loc. A nil base uses the real clock.
func NewClock(base clockwork.Clock, loc *time.Location) *Clock {
	if base == nil {
		base = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{base: base, loc: loc}
}

// Now returns the current instant in the civil timezone.
func (c *Clock) Now() time.Time { return c.base.Now().In(c.loc) }

// Location returns the civil timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Base exposes the underlying clock for collaborators that accept clockwork clocks.
func (c *Clock) Base() clockwork.Clock { return c.base }

// DaysBetween returns the number of civil dates from from to to.
// It is negative when to is on an earlier date.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// SameDay reports whether a and b fall on the same civil date.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DaysBetween(a, b, loc) == 0
}

// DaysAgo returns the instant n civil dates before now at the same wall-clock time.
func DaysAgo(now time.Time, n int, loc *time.Location) time.Time {
	return now.In(loc).AddDate(0, 0, -n)
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" in 24-hour notation.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time of day %q: expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: hour must be 0-23", raw)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: minute must be 0-59", raw)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On returns the instant at t on the civil date of day.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

// NextFire returns today's target at t, or tomorrow's when now is already past it.
func NextFire(now time.Time, t TimeOfDay, loc *time.Location) time.Time {
	target := t.On(now, loc)
	if now.After(target) {
		return t.On(now.In(loc).AddDate(0, 0, 1), loc)
	}
	return target
}

// PrevFire returns the most recent target at or before now.
func PrevFire(now time.Time, t TimeOfDay, loc *time.Location) time.Time {
	target := t.On(now, loc)
	if now.Before(target) {
		return t.On(now.In(loc).AddDate(0, 0, -1), loc)
	}
	return target
}
