// Package discourse is a small typed client for the public Discourse JSON
// endpoints the importer walks.
package discourse

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"

	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
)

// JSONFetcher is the subset of fetch.Client the API client needs.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, v any) error
}

// Client resolves endpoint paths against the instance base URL.
type Client struct {
	base    *url.URL
	fetcher JSONFetcher
}

// NewClient creates a client for the instance at base (which should end in "/").
func NewClient(base *url.URL, fetcher JSONFetcher) *Client {
	return &Client{base: base, fetcher: fetcher}
}

// ErrEmptyPostStream is returned when a topic has no posts.
var ErrEmptyPostStream = errors.New("topic has no posts")

// Categories lists top-level categories, or the children of parentID when it is non-zero.
func (c *Client) Categories(ctx context.Context, parentID int) ([]Category, error) {
	q := url.Values{}
	if parentID != 0 {
		q.Set("parent_category_id", strconv.Itoa(parentID))
	}
	var resp categoriesResponse
	if err := c.fetcher.FetchJSON(ctx, c.endpoint("categories.json", q), &resp); err != nil {
		return nil, err
	}
	return resp.CategoryList.Categories, nil
}

// LatestURL is the first page of the topic listing.
func (c *Client) LatestURL() string {
	return c.endpoint("latest.json", url.Values{"no_definitions": []string{"true"}})
}

// TopicList fetches one listing page.
func (c *Client) TopicList(ctx context.Context, pageURL string) (TopicList, error) {
	var resp topicListResponse
	if err := c.fetcher.FetchJSON(ctx, pageURL, &resp); err != nil {
		return TopicList{}, err
	}
	return resp.TopicList, nil
}

// NextPageURL resolves a more_topics_url against the base. Discourse emits
// the continuation without the .json suffix, so it is added when the path
// has no extension.
func (c *Client) NextPageURL(moreTopicsURL string) (string, error) {
	ref, err := url.Parse(moreTopicsURL)
	if err != nil {
		return "", derrors.ParseFailed(moreTopicsURL, err)
	}
	next := c.base.ResolveReference(ref)
	if path.Ext(next.Path) == "" {
		next.Path += ".json"
		next.RawPath = ""
	}
	return next.String(), nil
}

// FirstPost fetches the opening post of a topic: the topic's post stream
// names the post ids, and the first one is fetched in full.
func (c *Client) FirstPost(ctx context.Context, topicID int) (Post, error) {
	var topic topicResponse
	if err := c.fetcher.FetchJSON(ctx, c.endpoint(fmt.Sprintf("t/%d/1.json", topicID), nil), &topic); err != nil {
		return Post{}, err
	}
	if len(topic.PostStream.Stream) == 0 {
		return Post{}, fmt.Errorf("topic %d: %w", topicID, ErrEmptyPostStream)
	}

	var post Post
	postURL := c.endpoint(fmt.Sprintf("posts/%d.json", topic.PostStream.Stream[0]), nil)
	if err := c.fetcher.FetchJSON(ctx, postURL, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

// TopicURL is the canonical public URL of a topic.
func (c *Client) TopicURL(topicID int) string {
	return c.endpoint(fmt.Sprintf("t/%d", topicID), nil)
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: p})
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
