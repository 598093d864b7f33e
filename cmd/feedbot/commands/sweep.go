package commands

import (
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/feedbot/internal/messaging"
	"git.home.luguber.info/inful/feedbot/internal/scheduler"
)

// SweepCmd implements the 'sweep' command.
type SweepCmd struct {
	LogOnly bool `name:"log-only" help:"Log announcements instead of publishing them"`
}

func (s *SweepCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load(g, !s.LogOnly)
	if err != nil {
		return err
	}
	o, err := openOffline(cfg, true)
	if err != nil {
		return err
	}
	defer o.Close()

	var sender messaging.Sender = messaging.LogSender{Logger: g.Logger}
	if !s.LogOnly {
		bridge, err := messaging.DialNATS(messaging.BridgeConfig{
			URL:           cfg.NATSURL,
			Token:         cfg.BotToken,
			SubjectPrefix: cfg.SubjectPrefix,
			Name:          "feedbot-sweep",
		})
		if err != nil {
			return err
		}
		defer func() { _ = bridge.Close() }()
		sender = bridge
	}

	report, err := scheduler.NewSweeper(o.engine, sender, cfg.FeedChannelID, o.clock).Run(context.Background())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%d new deaths, %d announced, %d failed\n",
		len(report.Deaths), report.Announced, report.Failed)
	return err
}
