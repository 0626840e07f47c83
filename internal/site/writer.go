// Package site renders imported topics as static-site posts and writes them
// to the posts directory.
package site

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/discourse-import/internal/config"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
	"git.home.luguber.info/inful/discourse-import/internal/frontmatter"
	"git.home.luguber.info/inful/discourse-import/internal/logfields"
)

// Document is one post ready to be written.
type Document struct {
	TopicID int
	Slug    string
	// Day is the creation date as YYYY-MM-DD, used in the file name.
	Day    string
	Fields map[string]any
	Body   string
}

// Written describes the outcome of Write.
type Written struct {
	Path        string
	Fingerprint string
	// Unchanged is set when the file already held identical content.
	Unchanged bool
	DryRun    bool
}

// Writer writes documents below the posts directory.
type Writer struct {
	dir         string
	ext         string
	format      config.BodyFormat
	fingerprint bool
	dryRun      bool
	md          goldmark.Markdown
	policy      *bluemonday.Policy
}

// NewWriter creates a writer from the output settings in cfg.
func NewWriter(cfg *config.Config) *Writer {
	return &Writer{
		dir:         cfg.PostsDir,
		ext:         cfg.Extension,
		format:      cfg.BodyFormat,
		fingerprint: cfg.AddFingerprint,
		dryRun:      cfg.DryRun,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Path is where doc will be written.
func (w *Writer) Path(doc Document) string {
	return filepath.Join(w.dir, doc.Day+"-"+doc.Slug+w.ext)
}

// Render produces the file contents for doc. The fingerprint, when enabled,
// covers the final body.
func (w *Writer) Render(doc Document) ([]byte, string, error) {
	body, err := w.body(doc.Body)
	if err != nil {
		return nil, "", err
	}

	fields := maps.Clone(doc.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	var fp string
	if w.fingerprint {
		if fp, err = frontmatter.Fingerprint(fields, body); err != nil {
			return nil, "", derrors.InternalError("fingerprint document", err)
		}
		fields[frontmatter.FingerprintField] = fp
	}

	header, err := frontmatter.SerializeYAML(fields, frontmatter.HeaderOrder)
	if err != nil {
		return nil, "", derrors.InternalError("serialize front matter", err)
	}
	return frontmatter.Join(header, body), fp, nil
}

// Write renders doc and stores it, replacing any previous version.
func (w *Writer) Write(doc Document) (Written, error) {
	path := w.Path(doc)
	content, fp, err := w.Render(doc)
	if err != nil {
		return Written{}, err
	}
	out := Written{Path: path, Fingerprint: fp, DryRun: w.dryRun}

	if w.dryRun {
		slog.Info("Dry run: document not written", logfields.Path(path), logfields.TopicID(doc.TopicID))
		return out, nil
	}

	// #nosec G304 -- path is built from the configured posts directory
	existing, err := os.ReadFile(path)
	switch {
	case err == nil && (bytes.Equal(existing, content) || w.sameFingerprint(existing, fp)):
		out.Unchanged = true
		return out, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return Written{}, derrors.FilesystemFailed("read", path, err)
	}

	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return Written{}, derrors.FilesystemFailed("mkdir", w.dir, err)
	}
	// #nosec G306 -- posts are public site content
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return Written{}, derrors.FilesystemFailed("write", path, err)
	}
	slog.Debug("Document written", logfields.Path(path), logfields.Slug(doc.Slug))
	return out, nil
}

// sameFingerprint reports whether the header of an existing post carries
// fp. A match means header fields and body are unchanged even when the
// file was re-encoded, for example with CRLF line endings.
func (w *Writer) sameFingerprint(existing []byte, fp string) bool {
	if !w.fingerprint || fp == "" {
		return false
	}
	fields, _, err := frontmatter.Read(existing)
	if err != nil {
		slog.Debug("Existing post has unreadable front matter", logfields.Error(err))
		return false
	}
	stored, _ := fields[frontmatter.FingerprintField].(string)
	return stored == fp
}

// body converts the rewritten raw text to the configured output format.
func (w *Writer) body(raw string) ([]byte, error) {
	if w.format != config.BodyFormatHTML {
		return []byte(raw), nil
	}
	var buf bytes.Buffer
	if err := w.md.Convert([]byte(raw), &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return w.policy.SanitizeBytes(buf.Bytes()), nil
}
