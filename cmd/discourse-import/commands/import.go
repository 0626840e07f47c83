package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/discourse-import/internal/config"
	"git.home.luguber.info/inful/discourse-import/internal/importer"
	"git.home.luguber.info/inful/discourse-import/internal/logfields"
	"git.home.luguber.info/inful/discourse-import/internal/manifest"
	"git.home.luguber.info/inful/discourse-import/internal/metrics"
)

// ImportCmd implements the 'import' command. Flags override the
// configuration file; unset flags leave it alone.
type ImportCmd struct {
	Base      string `help:"Discourse instance URL" env:"DISCOURSE_BASE"`
	Assets    string `help:"Directory receiving downloaded images"`
	AssetsURL string `name:"assets-url" help:"Site-rooted prefix for localized image references (default: /<assets>)"`
	PostsDir  string `name:"posts-dir" help:"Directory receiving generated posts"`
	Extension string `help:"File extension of generated posts"`

	NoRedirects     bool `name:"no-redirects" help:"Do not emit redirect_from entries"`
	NoImageDownload bool `name:"no-image-download" help:"Keep every image reference remote"`
	UID             bool `name:"uid" help:"Add a stable uid derived from the topic URL"`
	Fingerprint     bool `help:"Add a content fingerprint to the front matter"`

	Strategy     string `help:"Image discovery strategy" enum:",auto,pattern,dom" default:""`
	StrictImages bool   `name:"strict-images" help:"Skip a topic when any of its images cannot be downloaded"`
	BodyFormat   string `name:"body-format" help:"Body below the front matter" enum:",raw,html" default:""`

	MaxTopics int           `name:"max-topics" help:"Stop after this many topics (0 = no limit)"`
	Timeout   time.Duration `help:"Per-request HTTP timeout"`
	RPS       float64       `name:"rps" help:"Requests per second per host (0 = unlimited)"`
	DryRun    bool          `name:"dry-run" help:"Fetch and rewrite but do not write posts"`

	Manifest    string `help:"SQLite file recording the run" type:"path"`
	MetricsFile string `name:"metrics-file" help:"Write a Prometheus textfile snapshot here when the run ends" type:"path"`
}

func (c *ImportCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, c.apply)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunImport(ctx, cfg, g.out())
}

// apply copies every flag that was set onto cfg.
func (c *ImportCmd) apply(cfg *config.Config) {
	setString(&cfg.Base, c.Base)
	setString(&cfg.Assets, c.Assets)
	setString(&cfg.AssetsURL, c.AssetsURL)
	setString(&cfg.PostsDir, c.PostsDir)
	setString(&cfg.Extension, c.Extension)
	setString(&cfg.Manifest, c.Manifest)
	setString(&cfg.MetricsFile, c.MetricsFile)

	if c.NoRedirects {
		cfg.AddRedirects = false
	}
	if c.NoImageDownload {
		cfg.DownloadImages = false
	}
	if c.UID {
		cfg.AddUID = true
	}
	if c.Fingerprint {
		cfg.AddFingerprint = true
	}
	if c.StrictImages {
		cfg.StrictImages = true
	}
	if c.DryRun {
		cfg.DryRun = true
	}
	if c.Strategy != "" {
		cfg.Strategy = config.Strategy(c.Strategy)
	}
	if c.BodyFormat != "" {
		cfg.BodyFormat = config.BodyFormat(c.BodyFormat)
	}
	if c.MaxTopics != 0 {
		cfg.MaxTopics = c.MaxTopics
	}
	if c.Timeout != 0 {
		cfg.HTTP.Timeout = c.Timeout
	}
	if c.RPS != 0 {
		cfg.HTTP.RequestsPerSecond = c.RPS
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// RunImport performs one import with a validated configuration and prints
// the summary to out.
func RunImport(ctx context.Context, cfg *config.Config, out io.Writer) error {
	// Provide friendly user-facing messages on stdout for CLI integration tests.
	_, _ = fmt.Fprintf(out, "Importing %s\n", cfg.Base)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if cfg.MetricsFile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	var opts []importer.Option
	if cfg.Manifest != "" {
		store, err := manifest.Open(cfg.Manifest)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				slog.Warn("Failed to close manifest", logfields.Path(cfg.Manifest), logfields.Error(cerr))
			}
		}()
		opts = append(opts, importer.WithJournal(store))
	}

	sum, runErr := importer.NewFromConfig(cfg, recorder, opts...).Run(ctx)

	if prom != nil {
		if err := prom.WriteTextfile(cfg.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics", logfields.Path(cfg.MetricsFile), logfields.Error(err))
		}
	}

	printSummary(out, sum, cfg.DryRun)
	if runErr != nil {
		_, _ = fmt.Fprintln(out, "Import failed")
		return runErr
	}
	_, _ = fmt.Fprintln(out, "Import completed successfully")
	return nil
}

func printSummary(out io.Writer, sum importer.Summary, dryRun bool) {
	written := "written"
	if dryRun {
		written = "would write"
	}
	_, _ = fmt.Fprintf(out, "Run %s: %d topics over %d pages in %s\n",
		sum.RunID, sum.Topics, sum.Pages, sum.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(out, "  %s: %d, unchanged: %d, skipped: %d\n", written, sum.Written, sum.Unchanged, sum.Skipped)
	_, _ = fmt.Fprintf(out, "  images localized: %d, kept remote: %d, remote after rewrite: %d\n",
		sum.AssetsLocalized, sum.AssetsFailed, sum.RemoteImages)
}
