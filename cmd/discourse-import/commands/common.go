package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/discourse-import/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	// Stdout receives user-facing output. Nil means os.Stdout.
	Stdout io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (optional; flags and defaults apply without one)" env:"DISCOURSE_IMPORT_CONFIG" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Import     ImportCmd     `cmd:"" default:"withargs" help:"Import every topic of a Discourse instance as static-site posts"`
	Categories CategoriesCmd `cmd:"" help:"Print the category tree of a Discourse instance"`
	Report     ReportCmd     `cmd:"" help:"List recorded import runs from a manifest"`
	Init       InitCmd       `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once. Commands that load
// a configuration replace the default logger with the configured one.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads the configuration file named by root, lets apply
// override fields from flags, validates the result and installs the
// configured logger.
func loadConfig(root *CLI, apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(cfg)
	}
	if root.Verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.Logging.NewLogger(os.Stderr))
	return cfg, nil
}
