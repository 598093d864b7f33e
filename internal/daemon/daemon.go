// Package daemon wires the bot's components into one long-running service.
package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/feedbot/internal/adoption"
	"git.home.luguber.info/inful/feedbot/internal/bot"
	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/config"
	"git.home.luguber.info/inful/feedbot/internal/dispatch"
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
	"git.home.luguber.info/inful/feedbot/internal/history"
	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/messaging"
	"git.home.luguber.info/inful/feedbot/internal/metrics"
	"git.home.luguber.info/inful/feedbot/internal/pet"
	"git.home.luguber.info/inful/feedbot/internal/scheduler"
	"git.home.luguber.info/inful/feedbot/internal/state"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// DailyJobName names the scheduled death sweep.
const DailyJobName = "daily-death-check"

// Transport carries chat traffic between the bot and the platform.
type Transport interface {
	messaging.Sender
	Subscribe(ctx context.Context, h messaging.Handler) error
	Close() error
}

// Option customizes a Daemon.
type Option func(*options)

type options struct {
	transport Transport
	clock     clockwork.Clock
	pick      pet.CausePicker
}

// WithTransport replaces the NATS bridge.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCausePicker fixes the cause of death.
func WithCausePicker(pick pet.CausePicker) Option {
	return func(o *options) { o.pick = pick }
}

// Daemon represents the main bot service
type Daemon struct {
	config    *config.Config
	status    atomic.Value // Status
	startTime time.Time
	mu        sync.Mutex
	cancel    context.CancelFunc

	clock      *civil.Clock
	runtime    *config.Runtime
	lock       *state.WriterLock
	store      *state.Store
	history    history.Log
	registry   *prom.Registry
	recorder   *metrics.PrometheusRecorder
	engine     *lifecycle.Engine
	transport  Transport
	scheduler  *scheduler.Scheduler
	sweeper    *scheduler.Sweeper
	dispatcher *dispatch.Dispatcher
	bot        *bot.Bot
	httpServer *http.Server
}

// New builds every component from cfg. It opens the pet state file and the
// history database; Stop closes them.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}

	d := &Daemon{config: cfg}
	d.status.Store(StatusStopped)
	d.clock = civil.NewClock(o.clock, cfg.Location())
	d.runtime = config.NewRuntime(cfg)

	d.registry = prom.NewRegistry()
	d.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	d.recorder = metrics.NewPrometheusRecorder(d.registry)

	lock, err := state.LockWriter(cfg.DataFile)
	if err != nil {
		return nil, err
	}
	d.lock = lock

	store, err := state.Open(cfg.DataFile, state.LoadOptions{
		Location:    d.clock.Location(),
		DefaultName: cfg.DefaultPetName,
		Now:         d.clock.Now(),
	})
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	d.store = store

	if cfg.HistoryDB == "" {
		d.history = history.NopLog{}
	} else {
		hl, err := history.OpenSQLite(cfg.HistoryDB)
		if err != nil {
			_ = lock.Release()
			return nil, err
		}
		d.history = hl
	}

	d.engine = lifecycle.NewEngine(store, lifecycle.Rules{
		MaxDaysMissed: cfg.MaxDaysMissed,
		DefaultName:   cfg.DefaultPetName,
		Location:      d.clock.Location(),
	}, lifecycle.WithHistory(d.history), lifecycle.WithMetrics(d.recorder))

	d.transport = o.transport
	if d.transport == nil {
		bridge, err := messaging.DialNATS(messaging.BridgeConfig{
			URL:           cfg.NATSURL,
			Token:         cfg.BotToken,
			SubjectPrefix: cfg.SubjectPrefix,
		})
		if err != nil {
			_ = d.history.Close()
			_ = lock.Release()
			return nil, err
		}
		d.transport = bridge
	}

	sched, err := scheduler.New(d.clock)
	if err != nil {
		_ = d.closeResources()
		return nil, err
	}
	d.scheduler = sched

	sweeperOpts := []scheduler.SweeperOption{scheduler.WithRecorder(d.recorder)}
	if o.pick != nil {
		sweeperOpts = append(sweeperOpts, scheduler.WithCausePicker(o.pick))
	}
	d.sweeper = scheduler.NewSweeper(d.engine, d.transport, cfg.FeedChannelID, d.clock, sweeperOpts...)

	d.dispatcher = dispatch.New(dispatch.Config{
		Engine:   d.engine,
		Sweeper:  d.sweeper,
		Next:     d.scheduler,
		TestMode: d.runtime,
		History:  d.history,
		Clock:    d.clock,
		AdminID:  cfg.AdminID,
		Prefix:   cfg.CommandPrefix,
		Trigger:  cfg.FeedTrigger,
	})

	d.bot = bot.New(bot.Config{
		Settings: bot.Settings{
			FeedChannelID: cfg.FeedChannelID,
			Trigger:       cfg.FeedTrigger,
			Prefix:        cfg.CommandPrefix,
		},
		Engine:     d.engine,
		Dispatcher: d.dispatcher,
		Sender:     d.transport,
		Runtime:    d.runtime,
		Clock:      d.clock,
		Adoption: adoption.Config{
			DefaultName: cfg.DefaultPetName,
			Timeout:     cfg.AdoptionTimeout,
			Clock:       o.clock,
			Recorder:    d.recorder,
		},
	})
	return d, nil
}

// Start catches up on a missed sweep, schedules the daily one and begins
// consuming chat events. ctx bounds the daemon's background work.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.GetStatus() != StatusStopped {
		return ErrAlreadyRunning
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if _, err := d.engine.Stats(d.clock.Now()); err != nil {
		slog.Warn("Could not seed pet gauges", logfields.Error(err))
	}

	at := d.config.CheckTime()
	if ran, report, err := d.sweeper.CatchUp(runCtx, at); err != nil {
		slog.Warn("Catch-up sweep did not complete", logfields.Error(err))
	} else if ran {
		slog.Info("Catch-up sweep finished", logfields.Count(len(report.Deaths)))
	}

	if _, err := d.scheduler.ScheduleDaily(DailyJobName, at, func() { d.runSweep(runCtx) }); err != nil {
		return d.fail(err)
	}
	d.scheduler.Start()

	if err := d.transport.Subscribe(runCtx, d.bot.Handle); err != nil {
		_ = d.scheduler.Stop()
		return d.fail(err)
	}

	if d.config.MetricsAddr != "" {
		d.startHTTP()
	}

	d.status.Store(StatusRunning)
	next, _ := d.scheduler.NextRun()
	slog.Info("Bot started",
		logfields.ChannelID(d.config.FeedChannelID),
		logfields.NextRun(next),
		slog.Int("max_days_missed", d.config.MaxDaysMissed),
		slog.String("timezone", d.config.Timezone))
	return nil
}

func (d *Daemon) fail(err error) error {
	d.status.Store(StatusError)
	if d.cancel != nil {
		d.cancel()
	}
	return err
}

func (d *Daemon) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.sweeper.Run(ctx); err != nil {
		slog.Warn("Daily sweep did not complete", logfields.Error(err))
	}
}

// Stop shuts the daemon down. Open adoption handshakes are abandoned.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s := d.GetStatus(); s != StatusRunning && s != StatusError {
		return ErrNotRunning
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping bot")

	var errs []error
	if err := d.scheduler.Stop(); err != nil {
		errs = append(errs, err)
	}
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.bot.Adoptions().Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timed out waiting for adoptions to end")
	}

	if d.httpServer != nil {
		if err := d.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		d.httpServer = nil
	}
	if err := d.closeResources(); err != nil {
		errs = append(errs, err)
	}

	d.status.Store(StatusStopped)
	if len(errs) > 0 {
		return errors.WrapError(stderrors.Join(errs...), errors.CategoryDaemon, "shutdown incomplete").Build()
	}
	slog.Info("Bot stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

func (d *Daemon) closeResources() error {
	return stderrors.Join(d.transport.Close(), d.history.Close(), d.lock.Release())
}

// Close releases resources of a daemon that was never started or failed to start.
func (d *Daemon) Close() error {
	switch d.GetStatus() {
	case StatusStopped, StatusError:
	default:
		return ErrAlreadyRunning
	}
	return d.closeResources()
}

// GetStatus returns the daemon status.
func (d *Daemon) GetStatus() Status {
	s, _ := d.status.Load().(Status)
	return s
}

// Engine exposes the pet lifecycle.
func (d *Daemon) Engine() *lifecycle.Engine { return d.engine }

// Sweeper exposes the death sweep.
func (d *Daemon) Sweeper() *scheduler.Sweeper { return d.sweeper }

// Bot exposes the event handler.
func (d *Daemon) Bot() *bot.Bot { return d.bot }

// Scheduler exposes the daily job.
func (d *Daemon) Scheduler() *scheduler.Scheduler { return d.scheduler }

// Registry exposes the Prometheus registry.
func (d *Daemon) Registry() *prom.Registry { return d.registry }
