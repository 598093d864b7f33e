// Package commands implements the feedbot command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/config"
	"git.home.luguber.info/inful/feedbot/internal/history"
	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/logging"
	"git.home.luguber.info/inful/feedbot/internal/state"
)

// Global holds state shared by subcommands.
type Global struct {
	Logger *slog.Logger
	logOut io.Closer
}

// Close flushes the log output.
func (g *Global) Close() {
	if g.logOut != nil {
		_ = g.logOut.Close()
		g.logOut = nil
	}
}

// CLI definition & global flags.
type CLI struct {
	Config   string           `short:"c" help:"Configuration file path (YAML, optional)" type:"path"`
	EnvFiles []string         `name:"env-file" help:"Dotenv files to read; missing files are skipped" default:".env,.env.local"`
	Verbose  bool             `short:"v" help:"Enable verbose logging"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run        RunCmd        `cmd:"" help:"Run the bot"`
	Sweep      SweepCmd      `cmd:"" help:"Run the daily death check once (refused while 'feedbot run' holds the state file)"`
	Pets       PetsCmd       `cmd:"" help:"List every stored pet (read-only, safe while the bot runs)"`
	History    HistoryCmd    `cmd:"" help:"Show the event history of an owner's pet"`
	NextCheck  NextCheckCmd  `cmd:"" name:"next-check" help:"Show when the daily death check runs next"`
	ShowConfig ShowConfigCmd `cmd:"" name:"show-config" help:"Print the effective configuration"`
}

// AfterApply runs after flag parsing; sets a console logger until the
// configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// load reads the configuration and switches logging to its settings.
func (c *CLI) load(g *Global, requireToken bool) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		File:         c.Config,
		EnvFiles:     c.EnvFiles,
		RequireToken: requireToken,
	})
	if err != nil {
		return nil, err
	}
	logger, out, err := logging.New(cfg.Log, c.Verbose)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	g.Logger = logger
	g.logOut = out
	return cfg, nil
}

// offline is the bot's storage without the chat transport.
type offline struct {
	lock    *state.WriterLock
	clock   *civil.Clock
	engine  *lifecycle.Engine
	history history.Log
}

// openOffline opens the stored roster. With write set it takes the state file's
// writer lock, so it fails with state.ErrStateLocked while "feedbot run" is up.
// Read-only callers must not persist through the returned engine.
func openOffline(cfg *config.Config, write bool) (*offline, error) {
	var lock *state.WriterLock
	if write {
		l, err := state.LockWriter(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		lock = l
	}
	clock := civil.NewClock(nil, cfg.Location())
	store, err := state.Open(cfg.DataFile, state.LoadOptions{
		Location:    clock.Location(),
		DefaultName: cfg.DefaultPetName,
		Now:         clock.Now(),
	})
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	var hl history.Log = history.NopLog{}
	if cfg.HistoryDB != "" {
		sl, err := history.OpenSQLite(cfg.HistoryDB)
		if err != nil {
			_ = lock.Release()
			return nil, err
		}
		hl = sl
	}
	engine := lifecycle.NewEngine(store, lifecycle.Rules{
		MaxDaysMissed: cfg.MaxDaysMissed,
		DefaultName:   cfg.DefaultPetName,
		Location:      clock.Location(),
	}, lifecycle.WithHistory(hl))
	return &offline{lock: lock, clock: clock, engine: engine, history: hl}, nil
}

func (o *offline) Close() {
	if err := o.history.Close(); err != nil {
		slog.Warn("Failed to close history", logfields.Error(err))
	}
	if err := o.lock.Release(); err != nil {
		slog.Warn("Failed to release state lock", logfields.Error(err))
	}
}
