package rewrite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/discourse-import/internal/assets"
	"git.home.luguber.info/inful/discourse-import/internal/config"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
)

// fakeLocalizer maps any http(s) URL to /assets/<prefix><basename> without
// touching the network. Hosts named fail.test fail with a network error and
// disk.test with a filesystem error.
type fakeLocalizer struct {
	calls []string
}

func (f *fakeLocalizer) IsLocal(ref string) bool {
	return strings.HasPrefix(ref, "/assets/")
}

func (f *fakeLocalizer) Localize(_ context.Context, raw, prefix string) (assets.Asset, error) {
	f.calls = append(f.calls, raw)
	asset := assets.Asset{SourceURL: raw, Reference: raw}

	target := raw
	switch {
	case strings.HasPrefix(raw, "//"):
		target = "http:" + raw
	case strings.HasPrefix(raw, "/"):
		target = "http://forum.test" + raw
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || path.Base(u.Path) == "/" || u.Path == "" {
		return asset, fmt.Errorf("%w: %q", assets.ErrNotLocalizable, raw)
	}
	switch u.Host {
	case "fail.test":
		return asset, derrors.FetchFailed(target, 404, errors.New("HTTP 404"))
	case "disk.test":
		return asset, derrors.FilesystemFailed("rename", "/assets/x", errors.New("read-only file system"))
	}
	asset.URL = target
	asset.Reference = "/assets/" + prefix + path.Base(u.Path)
	return asset, nil
}

func testConfig(strategy config.Strategy, strict bool) *config.Config {
	cfg := config.Default()
	cfg.Base = "http://forum.test/"
	cfg.Strategy = strategy
	cfg.StrictImages = strict
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}
