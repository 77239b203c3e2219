package commands

import (
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for generated config file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	// If the user specified an output directory, place the config there as "docpublish.yaml".
	if i.Output != "" {
		return RunInit(g, filepath.Join(i.Output, "docpublish.yaml"), i.Force)
	}
	return RunInit(g, root.Config, i.Force)
}

func RunInit(g *Global, configPath string, force bool) error {
	g.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		g.Printf("Initialization failed\n")
		return err
	}
	g.Printf("initialized successfully\n")
	return nil
}
