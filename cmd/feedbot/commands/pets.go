package commands

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"git.home.luguber.info/inful/feedbot/internal/lifecycle"
)

// PetsCmd implements the 'pets' command.
type PetsCmd struct{}

func (p *PetsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load(g, false)
	if err != nil {
		return err
	}
	o, err := openOffline(cfg, false)
	if err != nil {
		return err
	}
	defer o.Close()

	listings, err := o.engine.ListAll(o.clock.Now())
	if err != nil {
		return err
	}
	printPets(os.Stdout, listings, o.clock.Now())
	return nil
}

func printPets(w io.Writer, listings []lifecycle.Listing, now time.Time) {
	table := newTable(w, "Owner", "Name", "Status", "Last fed", "Days missed", "Feedings")

	for _, l := range listings {
		table.Append([]string{
			l.OwnerID,
			l.Pet.Name,
			string(l.Status),
			humanize.RelTime(l.Pet.LastFed, now, "ago", "from now"),
			strconv.Itoa(l.DaysMissed),
			humanize.Comma(int64(l.Pet.TotalFeedings)),
		})
	}
	table.Render()
}
