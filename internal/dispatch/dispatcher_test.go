package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/history"
	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
	"git.home.luguber.info/inful/feedbot/internal/pet"
	"git.home.luguber.info/inful/feedbot/internal/scheduler"
	"git.home.luguber.info/inful/feedbot/internal/state"
)

const admin = "999"

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type fakeSweeper struct {
	runs   int
	report scheduler.Report
	err    error
}

func (f *fakeSweeper) Run(context.Context) (scheduler.Report, error) {
	f.runs++
	return f.report, f.err
}

type fixedNext time.Time

func (n fixedNext) NextRun() (time.Time, error) { return time.Time(n), nil }

type toggle struct{ on bool }

func (t *toggle) TestMode() bool      { return t.on }
func (t *toggle) SetTestMode(on bool) { t.on = on }

type fixture struct {
	d       *Dispatcher
	engine  *lifecycle.Engine
	sweeper *fakeSweeper
	mode    *toggle
	path    string
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jd_data.json")
	store, err := state.Open(path, state.LoadOptions{Location: time.UTC, DefaultName: "JD", Now: t0})
	require.NoError(t, err)
	log, err := history.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	engine := lifecycle.NewEngine(store, lifecycle.Rules{MaxDaysMissed: 2, DefaultName: "JD", Location: time.UTC}, lifecycle.WithHistory(log))
	fc := clockwork.NewFakeClockAt(t0)
	f := &fixture{engine: engine, sweeper: &fakeSweeper{}, mode: &toggle{}, path: path, clock: fc}
	f.d = New(Config{
		Engine:   engine,
		Sweeper:  f.sweeper,
		Next:     fixedNext(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)),
		TestMode: f.mode,
		History:  log,
		Clock:    civil.NewClock(fc, time.UTC),
		AdminID:  admin,
		Prefix:   "!",
		Trigger:  ":feed_jd:",
	})
	return f
}

func (f *fixture) run(caller, text string) string {
	req, ok := Parse(text, "!")
	if !ok {
		return ""
	}
	req.CallerID = caller
	return f.d.Dispatch(context.Background(), req)
}

// snapshot returns the persisted file, or "" when nothing was written yet.
func (f *fixture) snapshot(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestParse(t *testing.T) {
	req, ok := Parse("  !Rename <@42> Sir   Rex ", "!")
	require.True(t, ok)
	assert.Equal(t, "rename", req.Command)
	assert.Equal(t, []string{"<@42>", "Sir", "Rex"}, req.Args)

	_, ok = Parse("hello !status", "!")
	assert.False(t, ok)
	_, ok = Parse("!", "!")
	assert.False(t, ok)
	_, ok = Parse("!status", "")
	assert.False(t, ok)
}

func TestParseOwner(t *testing.T) {
	for in, want := range map[string]string{"42": "42", "<@42>": "42", "<@!42>": "42"} {
		got, ok := ParseOwner(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "<@>", "<@4 2>"} {
		_, ok := ParseOwner(bad)
		assert.False(t, ok, bad)
	}
}

func TestDispatch_UnknownAndArityNeverMutate(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Adopt(context.Background(), "1", "Rex", t0)
	require.NoError(t, err)
	before := f.snapshot(t)

	assert.Contains(t, f.run(admin, "!explode"), "Unknown command !explode")
	assert.Equal(t, "Usage: !checkuser <id>", f.run(admin, "!checkuser"))
	assert.Equal(t, "Usage: !revive <id>", f.run(admin, "!revive 1 2"))
	assert.Equal(t, "Usage: !setfed <id> <daysAgo>", f.run(admin, "!setfed 1 three"))
	assert.Equal(t, "Usage: !rename <id> <name>", f.run(admin, "!rename 1"))
	assert.Equal(t, "Usage: !testmode <on|off>", f.run(admin, "!testmode maybe"))
	assert.Equal(t, "Usage: !history <id> [limit]", f.run(admin, "!history 1 -3"))

	assert.Equal(t, before, f.snapshot(t))
	assert.False(t, f.mode.on)
}

func TestDispatch_PrivilegedCommandsRefused(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Adopt(context.Background(), "1", "Rex", t0)
	require.NoError(t, err)
	before := f.snapshot(t)

	for _, cmd := range []string{"!cleardata", "!forcedaily", "!revive 1", "!rename 1 Max", "!setfed 1 5", "!testmode on", "!checkuser 1", "!history 1"} {
		reply := f.run("1", cmd)
		assert.True(t, strings.HasPrefix(reply, "You are not allowed"), "%s: %s", cmd, reply)
	}
	assert.Equal(t, before, f.snapshot(t))
	assert.Zero(t, f.sweeper.runs)
	assert.False(t, f.mode.on)
}

func TestDispatch_Help(t *testing.T) {
	f := newFixture(t)
	user := f.run("1", "!help")
	assert.Contains(t, user, "!status - show your pet")
	assert.NotContains(t, user, "!cleardata")

	adminHelp := f.run(admin, "!help")
	assert.Contains(t, adminHelp, "!setfed <id> <daysAgo>")
	assert.Contains(t, adminHelp, ":feed_jd:")
}

func TestDispatch_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	assert.Contains(t, f.run("1", "!status"), "You don't have a pet yet")

	_, err := f.engine.Adopt(ctx, "1", "Rex", t0)
	require.NoError(t, err)
	_, _, err = f.engine.Feed(ctx, "1", t0)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	assert.Equal(t, "Rex is alive. Fed once, last fed 3 hours ago.", f.run("1", "!status"))

	f.clock.Advance(72 * time.Hour)
	assert.True(t, strings.HasPrefix(f.run("1", "!status"), "Rex died"), "status persists the death")

	l, _, err := f.engine.Get("1", f.clock.Now())
	require.NoError(t, err)
	assert.True(t, l.Pet.Dead)
}

func TestDispatch_ListAllAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	assert.Equal(t, "Nobody has adopted a pet yet.", f.run("1", "!listall"))

	_, err := f.engine.Adopt(ctx, "1", "Rex", t0)
	require.NoError(t, err)
	_, err = f.engine.Adopt(ctx, "2", "Fido", t0)
	require.NoError(t, err)
	_, _, err = f.engine.Feed(ctx, "2", t0)
	require.NoError(t, err)

	assert.Equal(t, "<@1>: Rex (alive, 0 feedings)\n<@2>: Fido (alive, 1 feeding)", f.run("1", "!listall"))
	assert.Equal(t, "Pets: 2 (2 alive, 0 dead). Total feedings: 1.", f.run("1", "!stats"))
}

func TestDispatch_NextCheck(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Next daily check: 2026-04-02 09:00 UTC (23 hours from now).", f.run("1", "!nextcheck"))
}

func TestDispatch_AdminMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.engine.Adopt(ctx, "1", "Rex", t0)
	require.NoError(t, err)

	assert.Equal(t, "Renamed Rex to Sir Rex.", f.run(admin, "!rename <@1> Sir Rex"))
	assert.Equal(t, "Sir Rex was last fed 2026-03-29 10:00.", f.run(admin, "!setfed 1 3"))
	assert.Equal(t, "Days ago must be zero or more.", f.run(admin, "!setfed 1 -1"))

	checked := f.run(admin, "!checkuser 1")
	assert.Contains(t, checked, "Status: dead (3 days since last feeding)")

	_, err = f.engine.Status(ctx, "1", f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, "<@1>'s pet is dead. Revive it first.", f.run(admin, "!setfed 1 0"))
	assert.Equal(t, "Sir Rex has been revived!", f.run(admin, "!revive 1"))
	assert.Equal(t, "<@7> has no pet.", f.run(admin, "!setfed 7 0"))
	assert.Equal(t, "<@7> has no pet.", f.run(admin, "!revive 7"))
	assert.Equal(t, "<@7> has no pet.", f.run(admin, "!checkuser <@7>"))

	hist := f.run(admin, "!history 1")
	assert.Contains(t, hist, "revived")
	assert.Contains(t, hist, "renamed: Rex -> Sir Rex")

	assert.Equal(t, "Cleared 1 pets.", f.run(admin, "!cleardata"))
	assert.Equal(t, "Nobody has adopted a pet yet.", f.run(admin, "!listall"))
}

func TestDispatch_ForceDaily(t *testing.T) {
	f := newFixture(t)
	f.sweeper.report = scheduler.Report{Deaths: []lifecycle.Death{{OwnerID: "1"}}, Announced: 1}
	assert.Equal(t, "Daily check complete: 1 deaths, 1 announced.", f.run(admin, "!forcedaily"))

	f.sweeper.err = scheduler.ErrChannelUnavailable
	assert.Equal(t, "The feed channel is unavailable, daily check skipped.", f.run(admin, "!forcedaily"))

	f.sweeper.err = errors.New("disk full")
	assert.Equal(t, "Something went wrong, please try again later.", f.run(admin, "!forcedaily"))
	assert.Equal(t, 3, f.sweeper.runs)
}

func TestDispatch_TestMode(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Test mode enabled.", f.run(admin, "!testmode ON"))
	assert.True(t, f.mode.on)
	assert.Equal(t, "Test mode disabled.", f.run(admin, "!testmode off"))
	assert.False(t, f.mode.on)
}

func TestDispatch_DeadPetListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.engine.Adopt(ctx, "1", "Rex", t0)
	require.NoError(t, err)
	_, err = f.engine.SweepDeaths(ctx, t0.AddDate(0, 0, 5), func() string { return pet.Causes[1] })
	require.NoError(t, err)

	f.clock.Advance(24 * 6 * time.Hour)
	assert.Contains(t, f.run("1", "!status"), "Cause of death: sheer neglect.")
	assert.Contains(t, f.run(admin, "!checkuser 1"), "Cause of death: sheer neglect")
}
