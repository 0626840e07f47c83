package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"git.home.luguber.info/inful/discourse-import/internal/categories"
	"git.home.luguber.info/inful/discourse-import/internal/discourse"
	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
	"git.home.luguber.info/inful/discourse-import/internal/frontmatter"
	"git.home.luguber.info/inful/discourse-import/internal/logfields"
	"git.home.luguber.info/inful/discourse-import/internal/manifest"
	"git.home.luguber.info/inful/discourse-import/internal/markdown"
	"git.home.luguber.info/inful/discourse-import/internal/rewrite"
	"git.home.luguber.info/inful/discourse-import/internal/site"
)

// processTopic imports one topic. Errors carrying fatal severity stop the
// run; all others skip the topic.
func (im *Importer) processTopic(ctx context.Context, tree categories.Tree, topic discourse.Topic, sum *Summary) error {
	slug := topicSlug(topic)
	logger := slog.With(logfields.TopicID(topic.ID), logfields.Slug(slug))
	logger.Info("Importing topic", logfields.Title(topic.DisplayTitle()))

	created, err := topic.Created()
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryParse, derrors.SeverityError, "invalid created_at").
			WithContext("value", topic.CreatedAt)
	}

	post, err := im.api.FirstPost(ctx, topic.ID)
	if err != nil {
		return fmt.Errorf("fetch first post: %w", err)
	}

	prefix := slug + "-"
	body := post.Raw
	var records []manifest.Asset
	if im.cfg.DownloadImages {
		res, err := im.rewriter.Rewrite(ctx, rewrite.Post{Raw: post.Raw, Cooked: post.Cooked}, prefix)
		if err != nil {
			return fmt.Errorf("rewrite post: %w", err)
		}
		body = res.Body
		sum.AssetsLocalized += len(res.Localized)
		sum.AssetsFailed += len(res.Failed)
		records = append(records, assetRecords(res)...)

		if remote := markdown.Remote(markdown.ExtractImages([]byte(body))); len(remote) > 0 {
			sum.RemoteImages += len(remote)
			logger.Debug("Remote images remain after rewrite", slog.Int("count", len(remote)))
		}
	}

	fields := im.header(tree, topic, slug)
	if topic.ImageURL != "" {
		image := topic.ImageURL
		if im.cfg.DownloadImages {
			var thumb []manifest.Asset
			if image, thumb, err = im.localizeThumbnail(ctx, topic.ImageURL, prefix, sum); err != nil {
				return err
			}
			records = append(records, thumb...)
		}
		fields["image"] = image
	}

	written, err := im.writer.Write(site.Document{
		TopicID: topic.ID,
		Slug:    slug,
		Day:     created.Format("2006-01-02"),
		Fields:  fields,
		Body:    body,
	})
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityFatal, "write document")
	}
	if written.Unchanged {
		sum.Unchanged++
	} else {
		sum.Written++
	}

	im.record(ctx, sum.RunID, topic.ID, manifest.Document{
		TopicID: topic.ID, Slug: slug, Path: written.Path, Fingerprint: written.Fingerprint, Unchanged: written.Unchanged,
	}, records)
	return nil
}

// header builds the front matter fields common to every post.
func (im *Importer) header(tree categories.Tree, topic discourse.Topic, slug string) map[string]any {
	segments := tree.Segments(topic.CategoryID)
	if segments == nil {
		segments = []string{}
	}
	fields := map[string]any{
		"layout":   "post",
		"title":    topic.DisplayTitle(),
		"date":     topic.CreatedAt,
		"category": segments,
	}
	if im.cfg.AddRedirects {
		fields["redirects"] = Redirects(topic.ID, slug)
	}
	if im.cfg.AddUID {
		fields[frontmatter.UIDField] = frontmatter.TopicUID(im.api.TopicURL(topic.ID))
	}
	return fields
}

// Redirects lists the forum paths a topic used to be reachable under.
func Redirects(id int, slug string) []string {
	t := "/t/" + strconv.Itoa(id)
	return []string{
		t,
		t + "/",
		t + "/1",
		t + "/" + slug,
		t + "/" + slug + "/1",
		"/t/" + slug,
		"/t/" + slug + "/1",
	}
}

// topicSlug falls back to the id for topics whose title produced no slug.
func topicSlug(topic discourse.Topic) string {
	if topic.Slug != "" {
		return topic.Slug
	}
	return "topic-" + strconv.Itoa(topic.ID)
}

func assetRecords(res rewrite.Result) []manifest.Asset {
	sources := make([]string, 0, len(res.Localized))
	for src := range res.Localized {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	out := make([]manifest.Asset, 0, len(sources)+len(res.Failed))
	for _, src := range sources {
		out = append(out, manifest.Asset{Source: src, Reference: res.Localized[src], Status: manifest.AssetLocalized})
	}
	for _, src := range res.Failed {
		out = append(out, manifest.Asset{Source: src, Reference: src, Status: manifest.AssetKept})
	}
	return out
}

// record writes the topic's manifest rows. Manifest failures are logged and
// never affect the import.
func (im *Importer) record(ctx context.Context, runID string, topicID int, doc manifest.Document, records []manifest.Asset) {
	if im.journal == nil {
		return
	}
	if err := im.journal.RecordDocument(ctx, runID, doc); err != nil {
		slog.Warn("Failed to record document", logfields.TopicID(topicID), logfields.Error(err))
	}
	for _, a := range records {
		a.TopicID = topicID
		if err := im.journal.RecordAsset(ctx, runID, a); err != nil {
			slog.Warn("Failed to record asset", logfields.TopicID(topicID), logfields.Error(err))
			return
		}
	}
}
