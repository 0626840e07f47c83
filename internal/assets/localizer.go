// Package assets downloads images referenced by posts into the site's asset
// directory and hands back site-rooted references to the local copies.
//
// The asset directory itself is the cache: a file at the computed path means
// the image was already downloaded, so repeated runs make no network calls
// for it. Paths are derived from a caller-supplied prefix plus the last
// segment of the image URL, which means two different URLs with the same
// basename and prefix share one file (the first download wins).
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/discourse-import/internal/config"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
	"git.home.luguber.info/inful/discourse-import/internal/logfields"
	"git.home.luguber.info/inful/discourse-import/internal/metrics"
)

// ErrNotLocalizable marks references that have no fetchable http(s) form,
// such as Discourse "upload://" short URLs or data: URIs.
var ErrNotLocalizable = errors.New("reference cannot be localized")

// Fetcher is the subset of fetch.Client the localizer needs.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) (io.ReadCloser, error)
}

// Asset describes the outcome of one localization.
type Asset struct {
	// SourceURL is the reference exactly as it appeared in the post.
	SourceURL string
	// URL is the normalized absolute URL that was (or would be) fetched.
	URL string
	// LocalPath is the filesystem path of the downloaded copy.
	LocalPath string
	// Reference is what the post should point at: the site-rooted local
	// path on success, SourceURL unchanged on failure.
	Reference string
	// Cached reports that the file already existed and nothing was fetched.
	Cached bool
}

// Localizer resolves, downloads and caches images. It is safe for concurrent
// use: calls that target the same file are collapsed into one download.
type Localizer struct {
	base      *url.URL
	dir       string
	refPrefix string
	fetcher   Fetcher
	recorder  metrics.Recorder
	inflight  singleflight.Group
}

// NewLocalizer creates a localizer writing below cfg.Assets. cfg must have
// been validated.
func NewLocalizer(cfg *config.Config, fetcher Fetcher, recorder metrics.Recorder) *Localizer {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Localizer{
		base:      cfg.BaseURL(),
		dir:       cfg.Assets,
		refPrefix: cfg.AssetsReference(),
		fetcher:   fetcher,
		recorder:  recorder,
	}
}

// IsLocal reports whether ref already points into the asset directory.
func (l *Localizer) IsLocal(ref string) bool {
	return strings.HasPrefix(ref, l.refPrefix+"/")
}

// Normalize turns a reference found in a post into an absolute http(s) URL:
// protocol-relative URLs take the instance's scheme, site-relative ones are
// resolved against the instance base, and everything else must already be
// absolute.
func (l *Localizer) Normalize(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)

	var u *url.URL
	var err error
	switch {
	case strings.HasPrefix(raw, "//"):
		scheme := "http"
		if l.base != nil && l.base.Scheme != "" {
			scheme = l.base.Scheme
		}
		u, err = url.Parse(scheme + ":" + raw)
	case strings.HasPrefix(raw, "/"):
		var ref *url.URL
		ref, err = url.Parse(raw)
		if err == nil && l.base != nil {
			u = l.base.ResolveReference(ref)
		}
	default:
		u, err = url.Parse(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrNotLocalizable, raw, err)
	}
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotLocalizable, raw)
	}
	return u, nil
}

// Localize makes sure the image behind rawURL exists locally as
// prefix+basename and returns its site-rooted reference.
//
// On failure the returned Asset still carries Reference == rawURL so callers
// that degrade gracefully can use it as-is. Errors wrap ErrNotLocalizable,
// or are *errors.ImportError values in the network, parse or filesystem
// category.
func (l *Localizer) Localize(ctx context.Context, rawURL, prefix string) (Asset, error) {
	asset := Asset{SourceURL: rawURL, Reference: rawURL}

	u, err := l.Normalize(rawURL)
	if err != nil {
		l.recorder.IncAssetOutcome(metrics.AssetUnsupported)
		return asset, err
	}
	asset.URL = u.String()

	base := basename(u)
	if base == "" {
		l.recorder.IncAssetOutcome(metrics.AssetUnsupported)
		return asset, fmt.Errorf("%w: %q has no file name", ErrNotLocalizable, rawURL)
	}
	name := prefix + base
	asset.LocalPath = filepath.Join(l.dir, name)

	v, err, _ := l.inflight.Do(asset.LocalPath, func() (any, error) {
		return l.ensure(ctx, asset.URL, asset.LocalPath)
	})
	if err != nil {
		l.recorder.IncAssetOutcome(metrics.AssetFailed)
		slog.Warn("Image localization failed", logfields.URL(asset.URL), logfields.Error(err))
		return asset, err
	}

	asset.Cached, _ = v.(bool)
	asset.Reference = l.refPrefix + "/" + url.PathEscape(name)
	if asset.Cached {
		l.recorder.IncAssetOutcome(metrics.AssetCached)
	} else {
		l.recorder.IncAssetOutcome(metrics.AssetDownloaded)
		slog.Debug("Image downloaded", logfields.URL(asset.URL), logfields.Path(asset.LocalPath))
	}
	return asset, nil
}

// ensure downloads src to dst unless dst already exists. It reports whether
// dst was already present.
func (l *Localizer) ensure(ctx context.Context, src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, derrors.FilesystemFailed("stat", dst, err)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, derrors.FilesystemFailed("mkdir", dir, err)
	}

	body, err := l.fetcher.FetchBytes(ctx, src)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = body.Close()
	}()

	// Write next to the destination and rename so an interrupted download
	// never leaves a partial file that would later count as cached.
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return false, derrors.FilesystemFailed("create", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return false, derrors.FetchFailed(src, 0, fmt.Errorf("copy body: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return false, derrors.FilesystemFailed("close", tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return false, derrors.FilesystemFailed("rename", dst, err)
	}
	return false, nil
}

// basename is the last path segment of u, NFC-normalized so names decoded
// from percent-escapes are stable across filesystems.
func basename(u *url.URL) string {
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return ""
	}
	b := path.Base(p)
	if b == "." || b == "/" {
		return ""
	}
	return norm.NFC.String(b)
}

// Degradable reports whether a Localize error may be tolerated by keeping
// the remote reference: the remote side failed (network or parse, request
// timeouts included) while ctx, the run's context, is still live.
// Filesystem errors are never degradable.
func Degradable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return derrors.IsCategory(err, derrors.CategoryNetwork) || derrors.IsCategory(err, derrors.CategoryParse)
}
