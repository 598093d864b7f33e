package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"git.home.luguber.info/inful/feedbot/internal/civil"
)

// NextCheckCmd implements the 'next-check' command.
type NextCheckCmd struct{}

func (n *NextCheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load(g, false)
	if err != nil {
		return err
	}
	clock := civil.NewClock(nil, cfg.Location())
	return printNextCheck(os.Stdout, clock.Now(), cfg.CheckTime(), clock.Location())
}

func printNextCheck(w io.Writer, now time.Time, at civil.TimeOfDay, loc *time.Location) error {
	next := civil.NextFire(now, at, loc)
	_, err := fmt.Fprintf(w, "%s (%s)\n", next.Format("2006-01-02 15:04 MST"), humanize.RelTime(next, now, "ago", "from now"))
	return err
}
