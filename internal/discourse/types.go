package discourse

import (
	"fmt"
	"html"
	"time"
)

// Category is one entry of a categories.json listing.
type Category struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	ParentID       int    `json:"parent_category_id,omitempty"`
	SubcategoryIDs []int  `json:"subcategory_ids,omitempty"`
}

// Topic is one entry of a topic listing page.
type Topic struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	FancyTitle string `json:"fancy_title"`
	Slug       string `json:"slug"`
	CategoryID int    `json:"category_id"`
	CreatedAt  string `json:"created_at"`
	ImageURL   string `json:"image_url"`
}

// DisplayTitle prefers the typographically "fancy" title, which Discourse
// ships HTML-escaped.
func (t Topic) DisplayTitle() string {
	if t.FancyTitle != "" {
		return html.UnescapeString(t.FancyTitle)
	}
	return t.Title
}

// Created parses CreatedAt.
func (t Topic) Created() (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("topic %d: invalid created_at %q: %w", t.ID, t.CreatedAt, err)
	}
	return ts, nil
}

// TopicList is one page of the latest topics listing.
type TopicList struct {
	Topics []Topic `json:"topics"`
	// MoreTopicsURL is site-relative and absent on the last page.
	MoreTopicsURL string `json:"more_topics_url,omitempty"`
}

// Post carries the authored markup and the server-rendered HTML of a post.
type Post struct {
	ID      int    `json:"id"`
	TopicID int    `json:"topic_id"`
	Raw     string `json:"raw"`
	Cooked  string `json:"cooked"`
}

type categoriesResponse struct {
	CategoryList struct {
		Categories []Category `json:"categories"`
	} `json:"category_list"`
}

type topicListResponse struct {
	TopicList TopicList `json:"topic_list"`
}

type topicResponse struct {
	PostStream struct {
		Stream []int `json:"stream"`
	} `json:"post_stream"`
}
