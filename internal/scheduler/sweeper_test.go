package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/pet"
	"git.home.luguber.info/inful/feedbot/internal/state"
)

const feedChannel = "feed"

type sent struct{ channel, text string }

type fakeSender struct {
	mu       sync.Mutex
	sent     []sent
	readyErr error
	sendErr  error
}

func (f *fakeSender) Send(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{channelID, text})
	return nil
}

func (f *fakeSender) SendDirect(ctx context.Context, callerID, text string) error {
	return f.Send(ctx, "dm:"+callerID, text)
}

func (f *fakeSender) React(context.Context, string, string, string) error { return nil }

func (f *fakeSender) Ready(context.Context, string) error { return f.readyErr }

func (f *fakeSender) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T, sender *fakeSender) (*Sweeper, *lifecycle.Engine, *clockwork.FakeClock) {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "jd_data.json"), state.LoadOptions{Location: time.UTC, DefaultName: "JD", Now: t0})
	require.NoError(t, err)
	engine := lifecycle.NewEngine(store, lifecycle.Rules{MaxDaysMissed: 2, DefaultName: "JD", Location: time.UTC})
	fc := clockwork.NewFakeClockAt(t0)
	sw := NewSweeper(engine, sender, feedChannel, civil.NewClock(fc, time.UTC),
		WithCausePicker(func() string { return "boredom" }))
	return sw, engine, fc
}

func TestSweeper_AnnouncesEachDeathOnce(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	sw, engine, fc := newSweeper(t, sender)

	_, err := engine.Adopt(ctx, "A", "Rex", t0)
	require.NoError(t, err)
	fc.Advance(72 * time.Hour)

	report, err := sw.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Deaths, 1)
	assert.Equal(t, 1, report.Announced)

	again, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Deaths)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, feedChannel, msgs[0].channel)
	assert.Contains(t, msgs[0].text, "<@A>")
	assert.Contains(t, msgs[0].text, "Rex")
	assert.Contains(t, msgs[0].text, "boredom")
}

func TestSweeper_SkipsWhenChannelUnavailable(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{readyErr: errors.New("disconnected")}
	sw, engine, fc := newSweeper(t, sender)

	_, err := engine.Adopt(ctx, "A", "Rex", t0)
	require.NoError(t, err)
	fc.Advance(72 * time.Hour)

	_, err = sw.Run(ctx)
	require.ErrorIs(t, err, ErrChannelUnavailable)
	assert.Empty(t, sender.messages())

	l, _, err := engine.Get("A", fc.Now())
	require.NoError(t, err)
	assert.False(t, l.Pet.DeathNotified, "skipped cycle leaves the death unannounced")

	// The next cycle announces it.
	sender.readyErr = nil
	report, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Deaths, 1)
}

func TestSweeper_EmptyStoreIsNoop(t *testing.T) {
	sender := &fakeSender{}
	sw, _, _ := newSweeper(t, sender)
	report, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Deaths)
	assert.Empty(t, sender.messages())
}

func TestSweeper_CountsFailedAnnouncements(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{sendErr: errors.New("rate limited")}
	sw, engine, fc := newSweeper(t, sender)
	_, err := engine.Adopt(ctx, "A", "Rex", t0)
	require.NoError(t, err)
	fc.Advance(72 * time.Hour)

	report, err := sw.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Announced)
}

func TestSweeper_CatchUp(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	sw, engine, fc := newSweeper(t, sender)
	at := civil.TimeOfDay{Hour: 9}

	// Never swept and 09:00 today has passed.
	ran, _, err := sw.CatchUp(ctx, at)
	require.NoError(t, err)
	assert.True(t, ran)

	// Swept after the last fire time.
	ran, _, err = sw.CatchUp(ctx, at)
	require.NoError(t, err)
	assert.False(t, ran)

	// The process slept through the next fire.
	fc.Advance(24 * time.Hour)
	ran, _, err = sw.CatchUp(ctx, at)
	require.NoError(t, err)
	assert.True(t, ran)

	last, ok, err := engine.LastSweep()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(fc.Now()))
}

func TestAnnouncement(t *testing.T) {
	msg := Announcement(lifecycle.Death{OwnerID: "7", Name: "Rex", Cause: pet.Causes[0], DaysMissed: 3})
	assert.Equal(t, "💀 <@7>'s pet Rex has died of starvation after 3 days without food. Rest in peace.", msg)
}

func TestSweeper_LogsCauseOfEachAnnouncedDeath(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()
	sw, engine, fc := newSweeper(t, &fakeSender{})
	_, err := engine.Adopt(ctx, "A", "Rex", t0)
	require.NoError(t, err)
	fc.Advance(72 * time.Hour)
	_, err = sw.Run(ctx)
	require.NoError(t, err)

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec["msg"] == "Announced death" {
			found = true
			assert.Equal(t, "boredom", rec[logfields.KeyCause])
			assert.Equal(t, "A", rec[logfields.KeyOwnerID])
		}
	}
	assert.True(t, found)
}
