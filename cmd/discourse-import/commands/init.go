package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"git.home.luguber.info/inful/discourse-import/internal/config"
)

// DefaultConfigName is the file written by 'init' when no path is given.
const DefaultConfigName = "discourse-import.yaml"

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for generated config file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	switch {
	case i.Output != "":
		return RunInit(filepath.Join(i.Output, DefaultConfigName), i.Force, g.out())
	case root.Config != "":
		return RunInit(root.Config, i.Force, g.out())
	default:
		return RunInit(DefaultConfigName, i.Force, g.out())
	}
}

func RunInit(configPath string, force bool, out io.Writer) error {
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		_, _ = fmt.Fprintln(out, "Initialization failed")
		return err
	}
	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}
