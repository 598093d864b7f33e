package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"git.home.luguber.info/inful/feedbot/internal/dispatch"
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
	"git.home.luguber.info/inful/feedbot/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Owner string `arg:"" help:"Owner ID or mention"`
	Limit int    `short:"n" help:"Number of events to show" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load(g, false)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return errors.ConfigError("history is disabled; set FEEDBOT_HISTORY_DB").Build()
	}
	log, err := history.OpenSQLite(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	owner, ok := dispatch.ParseOwner(h.Owner)
	if !ok {
		return errors.ValidationError("invalid owner").WithContext("owner", h.Owner).Build()
	}
	events, err := log.ForOwner(context.Background(), owner, h.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		_, err := fmt.Fprintln(os.Stdout, "No history.")
		return err
	}
	printHistory(os.Stdout, events, cfg.Location())
	return nil
}

func printHistory(w io.Writer, events []history.Event, loc *time.Location) {
	table := newTable(w, "When", "Event", "Detail")
	for _, e := range events {
		table.Append([]string{e.At.In(loc).Format("2006-01-02 15:04"), string(e.Kind), e.Detail})
	}
	table.Render()
}
