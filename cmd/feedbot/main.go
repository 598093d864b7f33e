package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/feedbot/cmd/feedbot/commands"
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
	"git.home.luguber.info/inful/feedbot/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	parser := kong.Parse(cli,
		kong.Name("feedbot"),
		kong.Description("A chat bot that keeps one virtual pet per member alive."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	err := parser.Run(global, cli)
	global.Close()
	errors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
}
