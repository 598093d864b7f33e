// Package scheduler fires the daily death sweep.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
)

// Scheduler wraps a gocron scheduler running in the civil timezone.
type Scheduler struct {
	scheduler gocron.Scheduler
	clock     *civil.Clock

	mu    sync.Mutex
	daily gocron.Job
	at    civil.TimeOfDay
}

// New creates a scheduler driven by clock.
func New(clock *civil.Clock) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(clock.Location()),
		gocron.WithClock(clock.Base()),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryScheduler, ErrSchedulerCreate.Message()).Fatal().Build()
	}
	return &Scheduler{scheduler: s, clock: clock}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for a running task.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleDaily registers task to run every civil day at at. A run that is still
// in progress when the next fire arrives makes that fire wait for the next day.
// Returns the job ID.
func (s *Scheduler) ScheduleDaily(name string, at civil.TimeOfDay, task func()) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(at.Hour), uint(at.Minute), 0))),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryScheduler, ErrJobCreate.Message()).
			WithContext("name", name).Build()
	}

	s.mu.Lock()
	s.daily = job
	s.at = at
	s.mu.Unlock()

	slog.Info("Scheduled daily job", logfields.JobID(job.ID().String()), slog.String("name", name), slog.String("at", at.String()))
	return job.ID().String(), nil
}

// NextRun returns when the daily job fires next. Before the scheduler runs, or when
// gocron has nothing queued, the value is computed from the configured time.
func (s *Scheduler) NextRun() (time.Time, error) {
	s.mu.Lock()
	job, at := s.daily, s.at
	s.mu.Unlock()
	if job == nil {
		return time.Time{}, ErrNoJob
	}
	next, err := job.NextRun()
	if err != nil || next.IsZero() {
		return civil.NextFire(s.clock.Now(), at, s.clock.Location()), nil
	}
	return next.In(s.clock.Location()), nil
}

// RunNow triggers the daily job outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	job := s.daily
	s.mu.Unlock()
	if job == nil {
		return ErrNoJob
	}
	return job.RunNow()
}
