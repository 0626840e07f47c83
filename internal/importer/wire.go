package importer

import (
	"git.home.luguber.info/inful/discourse-import/internal/assets"
	"git.home.luguber.info/inful/discourse-import/internal/config"
	"git.home.luguber.info/inful/discourse-import/internal/discourse"
	"git.home.luguber.info/inful/discourse-import/internal/fetch"
	"git.home.luguber.info/inful/discourse-import/internal/metrics"
	"git.home.luguber.info/inful/discourse-import/internal/rewrite"
	"git.home.luguber.info/inful/discourse-import/internal/site"
)

// NewFromConfig wires the production pipeline: one HTTP client shared by
// the API client and the image localizer. cfg must have been validated.
func NewFromConfig(cfg *config.Config, recorder metrics.Recorder, opts ...Option) *Importer {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	client := fetch.NewClient(cfg.HTTP, fetch.WithRecorder(recorder))
	api := discourse.NewClient(cfg.BaseURL(), client)
	localizer := assets.NewLocalizer(cfg, client, recorder)
	rewriter := rewrite.New(localizer, cfg, recorder)
	writer := site.NewWriter(cfg)

	opts = append([]Option{WithRecorder(recorder)}, opts...)
	return New(cfg, api, rewriter, localizer, writer, opts...)
}
