package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/feedbot/internal/daemon"
)

// StopTimeout bounds graceful shutdown.
const StopTimeout = 30 * time.Second

// RunCmd implements the 'run' command.
type RunCmd struct{}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load(g, true)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		_ = d.Close()
		return err
	}

	slog.Info("Bot running, waiting for shutdown signal")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping bot")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), StopTimeout)
	defer stopCancel()
	return d.Stop(stopCtx)
}
