package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/messaging"
	"git.home.luguber.info/inful/feedbot/internal/metrics"
	"git.home.luguber.info/inful/feedbot/internal/pet"
)

// Report summarizes one sweep.
type Report struct {
	At        time.Time
	Deaths    []lifecycle.Death
	Announced int
	Failed    int
	Duration  time.Duration
}

// Sweeper detects deaths and announces each of them once in the feed channel.
type Sweeper struct {
	engine    *lifecycle.Engine
	sender    messaging.Sender
	channelID string
	clock     *civil.Clock
	pick      pet.CausePicker
	recorder  metrics.Recorder

	mu sync.Mutex
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithCausePicker overrides the random cause of death.
func WithCausePicker(pick pet.CausePicker) SweeperOption {
	return func(s *Sweeper) { s.pick = pick }
}

// WithRecorder reports sweep outcomes.
func WithRecorder(r metrics.Recorder) SweeperOption {
	return func(s *Sweeper) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSweeper returns a sweeper announcing in channelID.
func NewSweeper(engine *lifecycle.Engine, sender messaging.Sender, channelID string, clock *civil.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		engine:    engine,
		sender:    sender,
		channelID: channelID,
		clock:     clock,
		pick:      pet.RandomCause(nil),
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep. When the channel is unreachable nothing is marked as
// announced and ErrChannelUnavailable is returned.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	now := s.clock.Now()
	report := Report{At: now}

	if err := s.sender.Ready(ctx, s.channelID); err != nil {
		s.recorder.ObserveSweep(time.Since(start), metrics.SweepSkipped)
		slog.Warn("Skipping sweep, announcement channel unavailable", logfields.ChannelID(s.channelID), logfields.Error(err))
		return report, ErrChannelUnavailable.WithContext("channel_id", s.channelID)
	}

	deaths, err := s.engine.SweepDeaths(ctx, now, s.pick)
	if err != nil {
		s.recorder.ObserveSweep(time.Since(start), metrics.SweepFailed)
		slog.Error("Sweep failed", logfields.Error(err))
		return report, err
	}
	report.Deaths = deaths

	for _, d := range deaths {
		if err := s.sender.Send(ctx, s.channelID, Announcement(d)); err != nil {
			report.Failed++
			slog.Error("Failed to announce death",
				logfields.OwnerID(d.OwnerID), logfields.PetName(d.Name), logfields.Cause(d.Cause), logfields.Error(err))
			continue
		}
		report.Announced++
		slog.Info("Announced death", logfields.OwnerID(d.OwnerID), logfields.PetName(d.Name), logfields.Cause(d.Cause))
	}

	report.Duration = time.Since(start)
	outcome := metrics.SweepCompleted
	if report.Failed > 0 {
		outcome = metrics.SweepPartialSend
	}
	s.recorder.ObserveSweep(report.Duration, outcome)
	slog.Info("Sweep completed",
		logfields.Count(len(deaths)),
		slog.Int("announced", report.Announced),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

// CatchUp runs a sweep when the most recent daily fire time passed without one.
// It reports whether a sweep ran.
func (s *Sweeper) CatchUp(ctx context.Context, at civil.TimeOfDay) (bool, Report, error) {
	now := s.clock.Now()
	due := civil.PrevFire(now, at, s.clock.Location())
	last, ok, err := s.engine.LastSweep()
	if err != nil {
		return false, Report{}, err
	}
	if ok && !last.Before(due) {
		return false, Report{}, nil
	}
	slog.Info("Missed daily sweep, running now", slog.Time("due", due))
	report, err := s.Run(ctx)
	return true, report, err
}

// Announcement formats the death notice for d.
func Announcement(d lifecycle.Death) string {
	return fmt.Sprintf("💀 %s's pet %s has died of %s after %d days without food. Rest in peace.",
		messaging.Mention(d.OwnerID), d.Name, d.Cause, d.DaysMissed)
}
