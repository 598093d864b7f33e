// Package dispatch routes parsed text commands to lifecycle operations and formats
// the replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/foundation/normalization"
	"git.home.luguber.info/inful/feedbot/internal/history"
	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/messaging"
	"git.home.luguber.info/inful/feedbot/internal/pet"
	"git.home.luguber.info/inful/feedbot/internal/scheduler"
)

// Sweeper runs the death sweep on demand.
type Sweeper interface {
	Run(ctx context.Context) (scheduler.Report, error)
}

// NextRunner reports the next scheduled sweep.
type NextRunner interface {
	NextRun() (time.Time, error)
}

// TestModeSwitch exposes the process-wide test mode.
type TestModeSwitch interface {
	TestMode() bool
	SetTestMode(on bool)
}

// Config wires a Dispatcher.
type Config struct {
	Engine   *lifecycle.Engine
	Sweeper  Sweeper
	Next     NextRunner
	TestMode TestModeSwitch
	History  history.Log
	Clock    *civil.Clock
	AdminID  string
	Prefix   string
	Trigger  string
}

type handler func(ctx context.Context, req Request) string

type command struct {
	name       string
	args       string
	help       string
	minArgs    int
	maxArgs    int // -1 for no limit
	privileged bool
	run        handler
}

// Dispatcher executes commands.
type Dispatcher struct {
	cfg      Config
	commands map[string]*command
}

// New returns a dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.History == nil {
		cfg.History = history.NopLog{}
	}
	if cfg.Clock == nil {
		cfg.Clock = civil.NewClock(nil, nil)
	}
	d := &Dispatcher{cfg: cfg, commands: make(map[string]*command)}
	for _, c := range []*command{
		{name: "help", help: "show this message", run: d.help},
		{name: "status", help: "show your pet", run: d.status},
		{name: "listall", help: "list every pet", run: d.listAll},
		{name: "nextcheck", help: "when the next daily check runs", run: d.nextCheck},
		{name: "stats", help: "overall statistics", run: d.stats},
		{name: "checkuser", args: "<id>", help: "inspect a user's pet", minArgs: 1, maxArgs: 1, privileged: true, run: d.checkUser},
		{name: "cleardata", help: "remove every pet", privileged: true, run: d.clearData},
		{name: "forcedaily", help: "run the daily check now", privileged: true, run: d.forceDaily},
		{name: "rename", args: "<id> <name>", help: "rename a user's pet", minArgs: 2, maxArgs: -1, privileged: true, run: d.rename},
		{name: "revive", args: "<id>", help: "bring a user's pet back", minArgs: 1, maxArgs: 1, privileged: true, run: d.revive},
		{name: "setfed", args: "<id> <daysAgo>", help: "set when a pet was last fed", minArgs: 2, maxArgs: 2, privileged: true, run: d.setFed},
		{name: "testmode", args: "<on|off>", help: "toggle test mode", minArgs: 1, maxArgs: 1, privileged: true, run: d.testMode},
		{name: "history", args: "<id> [limit]", help: "show a user's pet history", minArgs: 1, maxArgs: 2, privileged: true, run: d.history},
	} {
		d.commands[c.name] = c
	}
	return d
}

// IsAdmin reports whether callerID may run privileged commands.
func (d *Dispatcher) IsAdmin(callerID string) bool {
	return d.cfg.AdminID != "" && callerID == d.cfg.AdminID
}

// Dispatch runs req and returns the reply. It never panics on bad input.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) string {
	c, ok := d.commands[req.Command]
	if !ok {
		return fmt.Sprintf("Unknown command %s%s. Try %shelp.", d.cfg.Prefix, req.Command, d.cfg.Prefix)
	}
	if c.privileged && !d.IsAdmin(req.CallerID) {
		slog.Info("Refused privileged command", logfields.Command(c.name), logfields.OwnerID(req.CallerID))
		return fmt.Sprintf("You are not allowed to use %s%s.", d.cfg.Prefix, c.name)
	}
	if len(req.Args) < c.minArgs || (c.maxArgs >= 0 && len(req.Args) > c.maxArgs) {
		return "Usage: " + d.usage(c)
	}
	slog.Debug("Dispatching command", logfields.Command(c.name), logfields.OwnerID(req.CallerID))
	return c.run(ctx, req)
}

func (d *Dispatcher) usage(c *command) string {
	u := d.cfg.Prefix + c.name
	if c.args != "" {
		u += " " + c.args
	}
	return u
}

func (d *Dispatcher) help(_ context.Context, req Request) string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Post %s in the feed channel once a day to feed your pet.\n", d.cfg.Trigger)
	admin := d.IsAdmin(req.CallerID)
	for _, name := range names {
		c := d.commands[name]
		if c.privileged && !admin {
			continue
		}
		fmt.Fprintf(&b, "%s - %s\n", d.usage(c), c.help)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) status(ctx context.Context, req Request) string {
	now := d.cfg.Clock.Now()
	status, err := d.cfg.Engine.Status(ctx, req.CallerID, now)
	if err != nil {
		return d.failure("status", err)
	}
	slog.Debug("Resolved pet status", logfields.OwnerID(req.CallerID), logfields.Status(string(status)))
	if status == pet.StatusAbsent {
		return fmt.Sprintf("You don't have a pet yet. Post %s in the feed channel to adopt one.", d.cfg.Trigger)
	}
	l, _, err := d.cfg.Engine.Get(req.CallerID, now)
	if err != nil {
		return d.failure("status", err)
	}
	return d.describe(l, now)
}

func (d *Dispatcher) describe(l lifecycle.Listing, now time.Time) string {
	p := l.Pet
	if l.Status == pet.StatusDead {
		msg := fmt.Sprintf("%s is dead.", p.Name)
		if p.DeathDate != nil {
			msg = fmt.Sprintf("%s died on %s.", p.Name, p.DeathDate.In(d.cfg.Clock.Location()).Format("2006-01-02"))
		}
		if p.CauseOfDeath != "" {
			msg += " Cause of death: " + p.CauseOfDeath + "."
		}
		return msg
	}
	return fmt.Sprintf("%s is alive. Fed %s, last fed %s.",
		p.Name, times(p.TotalFeedings), humanize.RelTime(p.LastFed, now, "ago", "from now"))
}

func times(n int) string {
	if n == 1 {
		return "once"
	}
	return humanize.Comma(int64(n)) + " times"
}

func (d *Dispatcher) listAll(_ context.Context, _ Request) string {
	now := d.cfg.Clock.Now()
	listings, err := d.cfg.Engine.ListAll(now)
	if err != nil {
		return d.failure("listall", err)
	}
	if len(listings) == 0 {
		return "Nobody has adopted a pet yet."
	}
	var b strings.Builder
	for _, l := range listings {
		fmt.Fprintf(&b, "%s: %s (%s, %s)\n", messaging.Mention(l.OwnerID), l.Pet.Name, l.Status, feedings(l.Pet.TotalFeedings))
	}
	return strings.TrimRight(b.String(), "\n")
}

func feedings(n int) string {
	if n == 1 {
		return "1 feeding"
	}
	return humanize.Comma(int64(n)) + " feedings"
}

func (d *Dispatcher) nextCheck(_ context.Context, _ Request) string {
	if d.cfg.Next == nil {
		return "The daily check is not scheduled."
	}
	next, err := d.cfg.Next.NextRun()
	if err != nil {
		return d.failure("nextcheck", err)
	}
	now := d.cfg.Clock.Now()
	return fmt.Sprintf("Next daily check: %s (%s).",
		next.In(d.cfg.Clock.Location()).Format("2006-01-02 15:04 MST"),
		humanize.RelTime(next, now, "ago", "from now"))
}

func (d *Dispatcher) stats(_ context.Context, _ Request) string {
	s, err := d.cfg.Engine.Stats(d.cfg.Clock.Now())
	if err != nil {
		return d.failure("stats", err)
	}
	return fmt.Sprintf("Pets: %d (%d alive, %d dead). Total feedings: %s.",
		s.Total, s.Alive, s.Dead, humanize.Comma(int64(s.TotalFeedings)))
}

func (d *Dispatcher) checkUser(_ context.Context, req Request) string {
	owner, ok := ParseOwner(req.Args[0])
	if !ok {
		return "Usage: " + d.usage(d.commands["checkuser"])
	}
	now := d.cfg.Clock.Now()
	l, found, err := d.cfg.Engine.Get(owner, now)
	if err != nil {
		return d.failure("checkuser", err)
	}
	if !found {
		return fmt.Sprintf("%s has no pet.", messaging.Mention(owner))
	}
	p := l.Pet
	var b strings.Builder
	fmt.Fprintf(&b, "%s's pet %s\n", messaging.Mention(owner), p.Name)
	fmt.Fprintf(&b, "Status: %s (%d days since last feeding)\n", l.Status, l.DaysMissed)
	fmt.Fprintf(&b, "Adopted: %s\n", p.CreatedAt.In(d.cfg.Clock.Location()).Format(time.RFC3339))
	fmt.Fprintf(&b, "Last fed: %s\n", p.LastFed.In(d.cfg.Clock.Location()).Format(time.RFC3339))
	fmt.Fprintf(&b, "Feedings: %d", p.TotalFeedings)
	if p.DeathDate != nil {
		fmt.Fprintf(&b, "\nDied: %s", p.DeathDate.In(d.cfg.Clock.Location()).Format(time.RFC3339))
	}
	if p.DeathNotified {
		fmt.Fprintf(&b, "\nCause of death: %s", p.CauseOfDeath)
	}
	return b.String()
}

func (d *Dispatcher) clearData(ctx context.Context, req Request) string {
	n, err := d.cfg.Engine.ClearAll(ctx, d.cfg.Clock.Now())
	if err != nil {
		return d.failure("cleardata", err)
	}
	slog.Warn("Roster cleared", logfields.OwnerID(req.CallerID), logfields.Count(n))
	return fmt.Sprintf("Cleared %d pets.", n)
}

func (d *Dispatcher) forceDaily(ctx context.Context, _ Request) string {
	if d.cfg.Sweeper == nil {
		return "The daily check is not available."
	}
	report, err := d.cfg.Sweeper.Run(ctx)
	if errors.Is(err, scheduler.ErrChannelUnavailable) {
		return "The feed channel is unavailable, daily check skipped."
	}
	if err != nil {
		return d.failure("forcedaily", err)
	}
	return fmt.Sprintf("Daily check complete: %d deaths, %d announced.", len(report.Deaths), report.Announced)
}

func (d *Dispatcher) rename(ctx context.Context, req Request) string {
	owner, ok := ParseOwner(req.Args[0])
	if !ok {
		return "Usage: " + d.usage(d.commands["rename"])
	}
	previous, p, err := d.cfg.Engine.Rename(ctx, owner, strings.Join(req.Args[1:], " "), d.cfg.Clock.Now())
	if err != nil {
		return d.rejection(owner, "rename", err)
	}
	return fmt.Sprintf("Renamed %s to %s.", previous, p.Name)
}

func (d *Dispatcher) revive(ctx context.Context, req Request) string {
	owner, ok := ParseOwner(req.Args[0])
	if !ok {
		return "Usage: " + d.usage(d.commands["revive"])
	}
	p, err := d.cfg.Engine.Revive(ctx, owner, d.cfg.Clock.Now())
	if err != nil {
		return d.rejection(owner, "revive", err)
	}
	return fmt.Sprintf("%s has been revived!", p.Name)
}

func (d *Dispatcher) setFed(ctx context.Context, req Request) string {
	owner, ok := ParseOwner(req.Args[0])
	daysAgo, err := strconv.Atoi(req.Args[1])
	if !ok || err != nil {
		return "Usage: " + d.usage(d.commands["setfed"])
	}
	p, err := d.cfg.Engine.ForceSetLastFed(ctx, owner, daysAgo, d.cfg.Clock.Now())
	if err != nil {
		return d.rejection(owner, "setfed", err)
	}
	return fmt.Sprintf("%s was last fed %s.", p.Name,
		p.LastFed.In(d.cfg.Clock.Location()).Format("2006-01-02 15:04"))
}

var onOff = normalization.NewNormalizer(map[string]bool{
	"on": true, "true": true, "enable": true, "1": true,
	"off": false, "false": false, "disable": false, "0": false,
}, false)

func (d *Dispatcher) testMode(_ context.Context, req Request) string {
	on, err := onOff.NormalizeWithError(req.Args[0])
	if err != nil {
		return "Usage: " + d.usage(d.commands["testmode"])
	}
	if d.cfg.TestMode == nil {
		return "Test mode is not available."
	}
	d.cfg.TestMode.SetTestMode(on)
	if on {
		return "Test mode enabled."
	}
	return "Test mode disabled."
}

func (d *Dispatcher) history(ctx context.Context, req Request) string {
	owner, ok := ParseOwner(req.Args[0])
	limit := 10
	if len(req.Args) == 2 {
		n, err := strconv.Atoi(req.Args[1])
		if err != nil || n <= 0 {
			ok = false
		}
		limit = n
	}
	if !ok {
		return "Usage: " + d.usage(d.commands["history"])
	}
	events, err := d.cfg.History.ForOwner(ctx, owner, limit)
	if err != nil {
		return d.failure("history", err)
	}
	if len(events) == 0 {
		return fmt.Sprintf("No history for %s.", messaging.Mention(owner))
	}
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "%s %s", ev.At.In(d.cfg.Clock.Location()).Format("2006-01-02 15:04"), ev.Kind)
		if ev.Detail != "" {
			fmt.Fprintf(&b, ": %s", ev.Detail)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// rejection turns policy errors into replies.
func (d *Dispatcher) rejection(owner, cmd string, err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrNoSuchPet):
		return fmt.Sprintf("%s has no pet.", messaging.Mention(owner))
	case errors.Is(err, lifecycle.ErrPetIsDead):
		return fmt.Sprintf("%s's pet is dead. Revive it first.", messaging.Mention(owner))
	case errors.Is(err, lifecycle.ErrInvalidDaysAgo):
		return "Days ago must be zero or more."
	default:
		return d.failure(cmd, err)
	}
}

func (d *Dispatcher) failure(cmd string, err error) string {
	slog.Error("Command failed", logfields.Command(cmd), logfields.Error(err))
	return "Something went wrong, please try again later."
}
