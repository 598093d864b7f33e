package civil

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestClock_NowInLocation(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	fake := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	c := NewClock(fake, loc)

	now := c.Now()
	assert.Equal(t, loc, now.Location())
	assert.Equal(t, 7, now.Hour())

	fake.Advance(2 * time.Hour)
	assert.Equal(t, 9, c.Now().Hour())
}

func TestDaysBetween(t *testing.T) {
	loc := mustLoad(t, "Europe/Berlin")

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"same instant", time.Date(2026, 5, 1, 10, 0, 0, 0, loc), time.Date(2026, 5, 1, 10, 0, 0, 0, loc), 0},
		{"late evening to early morning", time.Date(2026, 5, 1, 23, 59, 0, 0, loc), time.Date(2026, 5, 2, 0, 1, 0, 0, loc), 1},
		{"almost two full days same date span", time.Date(2026, 5, 1, 0, 1, 0, 0, loc), time.Date(2026, 5, 2, 23, 59, 0, 0, loc), 1},
		{"across month end", time.Date(2026, 4, 30, 12, 0, 0, 0, loc), time.Date(2026, 5, 2, 12, 0, 0, 0, loc), 2},
		{"across DST start", time.Date(2026, 3, 28, 12, 0, 0, 0, loc), time.Date(2026, 3, 30, 12, 0, 0, 0, loc), 2},
		{"backwards", time.Date(2026, 5, 3, 12, 0, 0, 0, loc), time.Date(2026, 5, 1, 12, 0, 0, 0, loc), -2},
		{"utc input converted", time.Date(2026, 5, 1, 22, 30, 0, 0, time.UTC), time.Date(2026, 5, 2, 1, 0, 0, 0, loc), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.from, tt.to, loc))
		})
	}
}

func TestDaysAgo_LandsOnPreviousDate(t *testing.T) {
	loc := mustLoad(t, "Europe/Berlin")
	// 2026-10-25 is the autumn DST switch: the day has 25 hours.
	now := time.Date(2026, 10, 26, 0, 30, 0, 0, loc)

	prev := DaysAgo(now, 1, loc)
	assert.Equal(t, 1, DaysBetween(prev, now, loc))
	assert.False(t, SameDay(prev, now, loc))
	assert.Equal(t, 30, prev.Minute())
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 5}, got)
	assert.Equal(t, "09:05", got.String())

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "-1:10"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestNextFire(t *testing.T) {
	loc := mustLoad(t, "America/Chicago")
	at := TimeOfDay{Hour: 9, Minute: 0}

	before := time.Date(2026, 6, 10, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 6, 10, 9, 0, 0, 0, loc), NextFire(before, at, loc))

	exactly := time.Date(2026, 6, 10, 9, 0, 0, 0, loc)
	assert.Equal(t, exactly, NextFire(exactly, at, loc))

	after := time.Date(2026, 6, 10, 9, 0, 1, 0, loc)
	assert.Equal(t, time.Date(2026, 6, 11, 9, 0, 0, 0, loc), NextFire(after, at, loc))

	yearEnd := time.Date(2026, 12, 31, 23, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2027, 1, 1, 9, 0, 0, 0, loc), NextFire(yearEnd, at, loc))
}

func TestPrevFire(t *testing.T) {
	loc := time.UTC
	at := TimeOfDay{Hour: 9, Minute: 30}

	morning := time.Date(2026, 6, 10, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 6, 9, 9, 30, 0, 0, loc), PrevFire(morning, at, loc))

	later := time.Date(2026, 6, 10, 12, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 6, 10, 9, 30, 0, 0, loc), PrevFire(later, at, loc))

	assert.True(t, PrevFire(later, at, loc).Before(NextFire(later, at, loc)))
}
