// Package fetch performs the blocking HTTP GETs the importer needs: JSON
// documents from the forum API and raw bytes for images.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"git.home.luguber.info/inful/discourse-import/internal/config"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
	"git.home.luguber.info/inful/discourse-import/internal/metrics"
	"git.home.luguber.info/inful/discourse-import/internal/retry"
)

const (
	maxJSONResponseBytes = 16 * 1024 * 1024
	maxRedirects         = 10

	kindJSON  = "json"
	kindBytes = "bytes"
)

// Client fetches JSON documents and byte streams. Errors are always
// *errors.ImportError values in the network or parse category. Transient
// failures are retried according to the configured policy.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *HostRateLimiter
	retry     retry.Policy
	recorder  metrics.Recorder
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (tests use this).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewClient creates a client from the http section of the configuration.
func NewClient(cfg config.HTTPConfig, opts ...Option) *Client {
	c := &Client{
		http:      NewHTTPClient(cfg.Timeout),
		userAgent: cfg.UserAgent,
		retry:     retry.FromConfig(cfg),
		recorder:  metrics.NoopRecorder{},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = NewHostRateLimiter(time.Duration(float64(time.Second) / cfg.RequestsPerSecond))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient creates an HTTP client with a request timeout and a bounded
// redirect chain. Cross-host redirects are allowed since uploads are commonly
// served from a CDN.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// FetchJSON GETs url and decodes the JSON body into v.
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	start := time.Now()
	resp, err := c.get(ctx, url, "application/json")
	if err != nil {
		c.recorder.ObserveFetchDuration(kindJSON, time.Since(start), false)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	limited := io.LimitReader(resp.Body, maxJSONResponseBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		c.recorder.ObserveFetchDuration(kindJSON, time.Since(start), false)
		return derrors.FetchFailed(url, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if len(data) > maxJSONResponseBytes {
		c.recorder.ObserveFetchDuration(kindJSON, time.Since(start), false)
		return derrors.FetchFailed(url, resp.StatusCode, errors.New("response too large"))
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.recorder.ObserveFetchDuration(kindJSON, time.Since(start), false)
		return derrors.ParseFailed(url, err)
	}

	c.recorder.ObserveFetchDuration(kindJSON, time.Since(start), true)
	return nil
}

// FetchBytes GETs url and returns the response body. The caller must close it.
func (c *Client) FetchBytes(ctx context.Context, url string) (io.ReadCloser, error) {
	start := time.Now()
	resp, err := c.get(ctx, url, "")
	c.recorder.ObserveFetchDuration(kindBytes, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	var resp *http.Response
	err := c.retry.Do(ctx, func() error {
		var err error
		resp, err = c.once(ctx, url, accept)
		return err
	}, func(err error) bool {
		return Transient(ctx, err)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Transient reports whether err is worth retrying: the connection failed or
// timed out, or the server answered 429 or 5xx. Nothing is transient once
// ctx is done.
func Transient(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if !derrors.IsCategory(err, derrors.CategoryNetwork) {
		return false
	}
	status := derrors.Status(err)
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) once(ctx context.Context, url, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.WaitForHost(ctx, url); err != nil {
			return nil, derrors.FetchFailed(url, 0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, derrors.FetchFailed(url, 0, fmt.Errorf("build request: %w", err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, derrors.FetchFailed(url, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, derrors.FetchFailed(url, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	return resp, nil
}
