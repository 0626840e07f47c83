// Package importer walks a Discourse instance's topic listing and turns the
// opening post of every topic into a static-site document.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/discourse-import/internal/assets"
	"git.home.luguber.info/inful/discourse-import/internal/categories"
	"git.home.luguber.info/inful/discourse-import/internal/config"
	"git.home.luguber.info/inful/discourse-import/internal/discourse"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
	"git.home.luguber.info/inful/discourse-import/internal/logfields"
	"git.home.luguber.info/inful/discourse-import/internal/manifest"
	"git.home.luguber.info/inful/discourse-import/internal/metrics"
	"git.home.luguber.info/inful/discourse-import/internal/rewrite"
	"git.home.luguber.info/inful/discourse-import/internal/site"
)

// API is the subset of discourse.Client the importer drives.
type API interface {
	categories.Lister
	LatestURL() string
	TopicList(ctx context.Context, pageURL string) (discourse.TopicList, error)
	NextPageURL(moreTopicsURL string) (string, error)
	FirstPost(ctx context.Context, topicID int) (discourse.Post, error)
	TopicURL(topicID int) string
}

// PostRewriter is implemented by rewrite.Rewriter.
type PostRewriter interface {
	Rewrite(ctx context.Context, post rewrite.Post, prefix string) (rewrite.Result, error)
}

// ImageLocalizer is implemented by assets.Localizer; it handles topic
// thumbnails.
type ImageLocalizer interface {
	Localize(ctx context.Context, rawURL, prefix string) (assets.Asset, error)
}

// DocumentWriter is implemented by site.Writer.
type DocumentWriter interface {
	Write(doc site.Document) (site.Written, error)
}

// Journal receives a record of the run. manifest.Store implements it.
type Journal interface {
	BeginRun(ctx context.Context, runID, base string, started time.Time) error
	RecordDocument(ctx context.Context, runID string, doc manifest.Document) error
	RecordAsset(ctx context.Context, runID string, a manifest.Asset) error
	FinishRun(ctx context.Context, run manifest.Run) error
}

// Summary counts what a run did.
type Summary struct {
	RunID     string
	Topics    int
	Written   int
	Unchanged int
	Skipped   int
	Pages     int
	// AssetsLocalized and AssetsFailed count distinct image sources per
	// topic, thumbnails included.
	AssetsLocalized int
	AssetsFailed    int
	// RemoteImages counts image references still pointing off-site after
	// rewriting.
	RemoteImages int
	Duration     time.Duration
}

// Importer runs one import. Create it with New.
type Importer struct {
	cfg      *config.Config
	api      API
	rewriter PostRewriter
	images   ImageLocalizer
	writer   DocumentWriter
	journal  Journal
	recorder metrics.Recorder
	newRunID func() string
}

// Option configures an Importer.
type Option func(*Importer)

// WithJournal records the run in j.
func WithJournal(j Journal) Option {
	return func(im *Importer) {
		im.journal = j
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(im *Importer) {
		if r != nil {
			im.recorder = r
		}
	}
}

// New wires an importer. cfg must have been validated.
func New(cfg *config.Config, api API, rewriter PostRewriter, images ImageLocalizer, writer DocumentWriter, opts ...Option) *Importer {
	im := &Importer{
		cfg:      cfg,
		api:      api,
		rewriter: rewriter,
		images:   images,
		writer:   writer,
		recorder: metrics.NoopRecorder{},
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run imports every topic reachable from the latest listing. Listing and
// category failures, write failures and cancellation end the run with an
// error; any other per-topic failure skips that topic.
func (im *Importer) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: im.newRunID()}
	logger := slog.With(logfields.RunID(sum.RunID))
	logger.Info("Import started", logfields.URL(im.cfg.Base))

	if im.journal != nil {
		if err := im.journal.BeginRun(ctx, sum.RunID, im.cfg.Base, start); err != nil {
			logger.Warn("Manifest unavailable", logfields.Error(err))
			im.journal = nil
		}
	}

	err := im.walk(ctx, logger, &sum)
	sum.Duration = time.Since(start)
	im.recorder.ObserveRunDuration(sum.Duration)

	if im.journal != nil {
		run := manifest.Run{
			ID: sum.RunID, Base: im.cfg.Base, Started: start, Finished: time.Now(),
			Topics: sum.Topics, Written: sum.Written, Unchanged: sum.Unchanged, Skipped: sum.Skipped,
			Pages: sum.Pages, AssetsLocalized: sum.AssetsLocalized, AssetsFailed: sum.AssetsFailed,
			Aborted: err != nil,
		}
		// The run context may already be cancelled; the manifest row is still worth finishing.
		if jerr := im.journal.FinishRun(context.WithoutCancel(ctx), run); jerr != nil {
			logger.Warn("Failed to finish manifest run", logfields.Error(jerr))
		}
	}

	if err != nil {
		logger.Error("Import aborted", logfields.Error(err))
		return sum, err
	}
	logger.Info("Import finished",
		slog.Int("topics", sum.Topics),
		slog.Int("written", sum.Written),
		slog.Int("unchanged", sum.Unchanged),
		slog.Int("skipped", sum.Skipped),
		slog.Int("pages", sum.Pages),
		slog.Int("remote_images", sum.RemoteImages),
		logfields.DurationMS(float64(sum.Duration.Milliseconds())))
	return sum, nil
}

// walk pages through the listing. Pagination is iterative; a continuation
// URL seen before ends the walk.
func (im *Importer) walk(ctx context.Context, logger *slog.Logger, sum *Summary) error {
	tree, err := categories.Build(ctx, im.api)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryNetwork, derrors.SeverityFatal, "build category tree")
	}

	seen := make(map[string]bool)
	pageURL := im.api.LatestURL()
	for pageURL != "" {
		if seen[pageURL] {
			logger.Warn("Listing repeats a page, stopping", logfields.URL(pageURL))
			return nil
		}
		seen[pageURL] = true

		list, err := im.api.TopicList(ctx, pageURL)
		if err != nil {
			return derrors.Wrap(err, derrors.CategoryNetwork, derrors.SeverityFatal, "fetch topic listing").
				WithContext("url", pageURL)
		}
		sum.Pages++
		logger.Debug("Listing page fetched", logfields.Page(sum.Pages), slog.Int("topics", len(list.Topics)))

		for _, topic := range list.Topics {
			if im.limitReached(logger, sum) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			sum.Topics++

			err := im.processTopic(ctx, tree, topic, sum)
			if err == nil {
				im.recorder.IncTopicResult(metrics.ResultSuccess)
				continue
			}
			if derrors.IsFatal(err) || ctx.Err() != nil {
				im.recorder.IncTopicResult(metrics.ResultFailed)
				return err
			}
			sum.Skipped++
			im.recorder.IncTopicResult(metrics.ResultSkipped)
			logger.Warn("Topic skipped", logfields.TopicID(topic.ID), logfields.Slug(topic.Slug), logfields.Error(err))
		}

		if list.MoreTopicsURL == "" || im.limitReached(logger, sum) {
			return nil
		}
		if pageURL, err = im.api.NextPageURL(list.MoreTopicsURL); err != nil {
			return derrors.Wrap(err, derrors.CategoryParse, derrors.SeverityFatal, "resolve next listing page")
		}
	}
	return nil
}

func (im *Importer) limitReached(logger *slog.Logger, sum *Summary) bool {
	if im.cfg.MaxTopics > 0 && sum.Topics >= im.cfg.MaxTopics {
		logger.Info("Topic limit reached", slog.Int("max_topics", im.cfg.MaxTopics))
		return true
	}
	return false
}

// localizeThumbnail applies the same failure policy as body images.
func (im *Importer) localizeThumbnail(ctx context.Context, imageURL, prefix string, sum *Summary) (string, []manifest.Asset, error) {
	asset, err := im.images.Localize(ctx, imageURL, prefix)
	switch {
	case err == nil:
		sum.AssetsLocalized++
		return asset.Reference, []manifest.Asset{{Source: imageURL, Reference: asset.Reference, Status: manifest.AssetLocalized}}, nil
	case errors.Is(err, assets.ErrNotLocalizable):
		return imageURL, nil, nil
	case !im.cfg.StrictImages && assets.Degradable(ctx, err):
		sum.AssetsFailed++
		slog.Warn("Keeping remote thumbnail", logfields.URL(imageURL), logfields.Error(err))
		return imageURL, []manifest.Asset{{Source: imageURL, Reference: imageURL, Status: manifest.AssetKept}}, nil
	default:
		return "", nil, fmt.Errorf("thumbnail %s: %w", imageURL, err)
	}
}
