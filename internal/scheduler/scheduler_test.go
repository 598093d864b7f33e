package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feedbot/internal/civil"
)

func TestScheduler_ScheduleDaily(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	fc := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 10, 0, 0, 0, berlin))
	s, err := New(civil.NewClock(fc, berlin))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	_, err = s.NextRun()
	require.ErrorIs(t, err, ErrNoJob)

	id, err := s.ScheduleDaily("daily-sweep", civil.TimeOfDay{Hour: 9}, func() {})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	next, err := s.NextRun()
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 6, 2, 9, 0, 0, 0, berlin)), "got %s", next)
}

func TestScheduler_RunNow(t *testing.T) {
	s, err := New(civil.NewClock(clockwork.NewFakeClock(), time.UTC))
	require.NoError(t, err)

	require.ErrorIs(t, s.RunNow(context.Background()), ErrNoJob)

	var runs atomic.Int32
	_, err = s.ScheduleDaily("daily-sweep", civil.TimeOfDay{Hour: 9}, func() { runs.Add(1) })
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.RunNow(context.Background()))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}
