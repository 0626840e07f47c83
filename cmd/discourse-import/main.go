package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/discourse-import/cmd/discourse-import/commands"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
	"git.home.luguber.info/inful/discourse-import/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("discourse-import"),
		kong.Description("Import Discourse topics as static-site posts with localized images."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.GitCommit, version.BuildTime)},
	)

	if err := parser.Run(&commands.Global{}, cli); err != nil {
		adapter := derrors.NewCLIErrorAdapter(cli.Verbose, nil)
		adapter.Log(err)
		_, _ = fmt.Fprintln(os.Stderr, adapter.FormatError(err))
		os.Exit(adapter.ExitCodeFor(err))
	}
}
