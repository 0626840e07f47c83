// Package rewrite finds image references in a post body, localizes each one
// and substitutes the local reference back into the raw text.
//
// Two discovery strategies exist. The pattern strategy scans the raw markup
// for the five reference shapes Discourse posts use. The DOM strategy reads
// the rendered (cooked) HTML, which is authoritative about which images a
// post really shows, and then substitutes those sources literally into the
// raw text.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/discourse-import/internal/assets"
	"git.home.luguber.info/inful/discourse-import/internal/config"
	"git.home.luguber.info/inful/discourse-import/internal/logfields"
	"git.home.luguber.info/inful/discourse-import/internal/metrics"
)

// Form names the syntactic shape an image reference was found in.
type Form string

const (
	FormHTML      Form = "html"
	FormBBCode    Form = "bbcode"
	FormLinked    Form = "linked"
	FormInline    Form = "inline"
	FormReference Form = "reference"
	FormBare      Form = "bare"
)

// Localizer is implemented by assets.Localizer.
type Localizer interface {
	Localize(ctx context.Context, rawURL, prefix string) (assets.Asset, error)
	IsLocal(ref string) bool
}

// Post is the input of one rewrite: the author's markup and, when
// available, the server-rendered HTML.
type Post struct {
	Raw    string
	Cooked string
}

// Reference is one substituted occurrence.
type Reference struct {
	Form   Form
	Source string
	Local  string
}

// Result is the outcome of rewriting one post.
type Result struct {
	Body       string
	Strategy   config.Strategy
	References []Reference
	// Localized maps each source URL to its local reference.
	Localized map[string]string
	// Failed lists source URLs that could not be downloaded and were kept.
	Failed []string
}

// Counts returns the number of substitutions per form.
func (r Result) Counts() map[Form]int {
	counts := make(map[Form]int)
	for _, ref := range r.References {
		counts[ref.Form]++
	}
	return counts
}

// Rewriter rewrites post bodies. It holds no per-post state and may be
// shared.
type Rewriter struct {
	loc      Localizer
	strategy config.Strategy
	strict   bool
	base     *url.URL
	recorder metrics.Recorder
}

// New creates a Rewriter using the strategy and strictness from cfg.
func New(loc Localizer, cfg *config.Config, recorder metrics.Recorder) *Rewriter {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Rewriter{
		loc:      loc,
		strategy: cfg.Strategy,
		strict:   cfg.StrictImages,
		base:     cfg.BaseURL(),
		recorder: recorder,
	}
}

// StrategyFor resolves "auto" against the post: DOM when cooked HTML is
// present, pattern otherwise.
func (r *Rewriter) StrategyFor(post Post) config.Strategy {
	switch r.strategy {
	case config.StrategyPattern, config.StrategyDOM:
		return r.strategy
	default:
		if strings.TrimSpace(post.Cooked) != "" {
			return config.StrategyDOM
		}
		return config.StrategyPattern
	}
}

// Rewrite localizes every image reference in post and returns the rewritten
// raw text. prefix is prepended to every downloaded file name.
//
// A download failure keeps the original URL in place. In strict mode, or
// when the failure is a local filesystem error, the post is abandoned and
// the error returned.
func (r *Rewriter) Rewrite(ctx context.Context, post Post, prefix string) (Result, error) {
	run := &postRun{
		r:      r,
		ctx:    ctx,
		prefix: prefix,
		memo:   make(map[string]string),
		result: Result{Localized: make(map[string]string)},
	}

	strategy := r.StrategyFor(post)
	var body string
	var err error
	switch strategy {
	case config.StrategyDOM:
		body, err = run.dom(post)
	default:
		body, err = run.pattern(post.Raw)
	}
	if err != nil {
		return Result{}, err
	}

	run.result.Body = body
	run.result.Strategy = strategy
	for form, n := range run.result.Counts() {
		r.recorder.AddSubstitutions(string(form), n)
	}
	slog.Debug("Post rewritten",
		slog.String("strategy", string(strategy)),
		slog.Int("substitutions", len(run.result.References)),
		slog.Int("failed", len(run.result.Failed)))
	return run.result, nil
}

// postRun carries the per-post memo so each distinct source is localized at
// most once, whatever the number of forms it appears in.
type postRun struct {
	r      *Rewriter
	ctx    context.Context
	prefix string
	memo   map[string]string
	result Result
	err    error
}

// localize returns the reference to substitute for raw and whether it
// differs from raw. After the first fatal error every call is a no-op.
func (p *postRun) localize(raw string) (string, bool) {
	if p.err != nil || raw == "" {
		return raw, false
	}
	if p.r.loc.IsLocal(raw) {
		return raw, false
	}
	if local, ok := p.memo[raw]; ok {
		return local, local != raw
	}

	asset, err := p.r.loc.Localize(p.ctx, raw, p.prefix)
	switch {
	case err == nil:
		p.memo[raw] = asset.Reference
		p.result.Localized[raw] = asset.Reference
		return asset.Reference, asset.Reference != raw
	case errors.Is(err, assets.ErrNotLocalizable):
		p.memo[raw] = raw
		return raw, false
	case !p.r.strict && assets.Degradable(p.ctx, err):
		slog.Warn("Keeping remote image", logfields.URL(raw), logfields.Error(err))
		p.memo[raw] = raw
		p.result.Failed = append(p.result.Failed, raw)
		return raw, false
	default:
		p.err = fmt.Errorf("localize %s: %w", raw, err)
		return raw, false
	}
}

func (p *postRun) record(form Form, source, local string) {
	p.result.References = append(p.result.References, Reference{Form: form, Source: source, Local: local})
}
