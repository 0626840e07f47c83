package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/discourse-import/internal/config"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
	"git.home.luguber.info/inful/discourse-import/internal/manifest"
)

// ReportCmd implements the 'report' command.
type ReportCmd struct {
	Manifest  string `help:"SQLite manifest to read (default: manifest from the configuration)" type:"path"`
	Limit     int    `short:"n" help:"Show at most this many runs (0 = all)" default:"10"`
	Documents bool   `short:"d" help:"List the documents of the most recent run"`
}

func (r *ReportCmd) Run(g *Global, root *CLI) error {
	path := r.Manifest
	if path == "" {
		cfg, err := config.Load(root.Config)
		if err != nil {
			return err
		}
		path = cfg.Manifest
	}
	if path == "" {
		return derrors.ConfigRequired("manifest")
	}
	return RunReport(context.Background(), path, r.Limit, r.Documents, g.out())
}

// RunReport prints the runs recorded in the manifest at path, newest first.
func RunReport(ctx context.Context, path string, limit int, documents bool, out io.Writer) error {
	store, err := manifest.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tTOPICS\tWRITTEN\tUNCHANGED\tSKIPPED\tIMAGES\tKEPT")
	for _, run := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			run.ID, run.Started.Format(time.RFC3339), runStatus(run),
			run.Topics, run.Written, run.Unchanged, run.Skipped, run.AssetsLocalized, run.AssetsFailed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !documents {
		return nil
	}
	docs, err := store.Documents(ctx, runs[0].ID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\nDocuments of run %s:\n", runs[0].ID)
	for _, d := range docs {
		state := "written"
		if d.Unchanged {
			state = "unchanged"
		}
		_, _ = fmt.Fprintf(out, "  %d\t%s\t%s\n", d.TopicID, state, d.Path)
	}
	return nil
}

func runStatus(run manifest.Run) string {
	switch {
	case run.Aborted:
		return "aborted"
	case run.Finished.IsZero():
		return "running"
	default:
		return "ok"
	}
}
