package commands

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/feedbot/internal/config"
)

// ShowConfigCmd implements the 'show-config' command.
type ShowConfigCmd struct{}

func (s *ShowConfigCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.load(g, false)
	if err != nil {
		return err
	}
	return writeConfig(os.Stdout, cfg)
}

// writeConfig prints cfg as YAML with the bot token masked.
func writeConfig(w io.Writer, cfg *config.Config) error {
	masked := *cfg
	if masked.BotToken != "" {
		masked.BotToken = "********"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return err
	}
	return enc.Close()
}
