// Package item defines the canonical versioned envelope published to
// the raw-items topic. It is the only shape crossing the publisher
// boundary; downstream consumers never see Reddit-native payloads.
package item

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageVersion is the envelope version stamped on every item.
const MessageVersion = "1"

// SourceReddit tags items originating from the Reddit ingester.
const SourceReddit = "reddit"

// Kind discriminates the envelope variants.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Key identifies an item within a source's stream.
type Key struct {
	Kind     Kind
	RedditID string
}

// Item is the tagged union over envelope variants. Implementations are
// RawPost and RawComment.
type Item interface {
	// Key returns the (kind, id) identity used for deduplication.
	Key() Key
	// Validate checks the envelope against the canonical schema.
	Validate() error
	// Attributes returns the routing metadata attached to the
	// published message.
	Attributes() map[string]string
}

// RawPost is the canonical post envelope.
type RawPost struct {
	MessageVersion string `json:"messageVersion"`
	Source         string `json:"source"`
	ItemKind       Kind   `json:"itemKind"`
	RedditID       string `json:"redditId"`
	Subreddit      string `json:"subreddit"`
	Author         string `json:"author"`
	CreatedAt      string `json:"createdAt"`
	IngestedAt     string `json:"ingestedAt"`
	Score          int    `json:"score"`
	Permalink      string `json:"permalink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	CommentCount   int    `json:"commentCount"`
}

func (p RawPost) Key() Key {
	return Key{Kind: KindPost, RedditID: p.RedditID}
}

func (p RawPost) Validate() error {
	if err := validateCommon(p.MessageVersion, p.Source, p.ItemKind, KindPost,
		p.RedditID, p.Subreddit, p.Author, p.CreatedAt, p.IngestedAt, p.Permalink); err != nil {
		return fmt.Errorf("post %s: %w", p.RedditID, err)
	}
	if p.Title == "" {
		return fmt.Errorf("post %s: title is required", p.RedditID)
	}
	if p.CommentCount < 0 {
		return fmt.Errorf("post %s: comment count must be non-negative", p.RedditID)
	}
	return nil
}

func (p RawPost) Attributes() map[string]string {
	return routingAttributes(p.Source, p.ItemKind, p.Subreddit, p.RedditID)
}

// RawComment is the canonical comment envelope.
type RawComment struct {
	MessageVersion string `json:"messageVersion"`
	Source         string `json:"source"`
	ItemKind       Kind   `json:"itemKind"`
	RedditID       string `json:"redditId"`
	Subreddit      string `json:"subreddit"`
	Author         string `json:"author"`
	CreatedAt      string `json:"createdAt"`
	IngestedAt     string `json:"ingestedAt"`
	Score          int    `json:"score"`
	Permalink      string `json:"permalink"`
	Body           string `json:"body"`
	ParentRedditID string `json:"parentRedditId"`
	PostRedditID   string `json:"postRedditId"`
}

func (c RawComment) Key() Key {
	return Key{Kind: KindComment, RedditID: c.RedditID}
}

func (c RawComment) Validate() error {
	if err := validateCommon(c.MessageVersion, c.Source, c.ItemKind, KindComment,
		c.RedditID, c.Subreddit, c.Author, c.CreatedAt, c.IngestedAt, c.Permalink); err != nil {
		return fmt.Errorf("comment %s: %w", c.RedditID, err)
	}
	if c.ParentRedditID == "" {
		return fmt.Errorf("comment %s: parent reddit id is required", c.RedditID)
	}
	if c.PostRedditID == "" {
		return fmt.Errorf("comment %s: post reddit id is required", c.RedditID)
	}
	return nil
}

func (c RawComment) Attributes() map[string]string {
	return routingAttributes(c.Source, c.ItemKind, c.Subreddit, c.RedditID)
}

func validateCommon(version, source string, kind, wantKind Kind, redditID, subreddit, author, createdAt, ingestedAt, permalink string) error {
	if version != MessageVersion {
		return fmt.Errorf("message version must be %q, got %q", MessageVersion, version)
	}
	if source != SourceReddit {
		return fmt.Errorf("source must be %q, got %q", SourceReddit, source)
	}
	if kind != wantKind {
		return fmt.Errorf("item kind must be %q, got %q", wantKind, kind)
	}
	if redditID == "" {
		return errors.New("reddit id is required")
	}
	if subreddit == "" {
		return errors.New("subreddit is required")
	}
	if author == "" {
		return errors.New("author is required")
	}
	if _, err := time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return fmt.Errorf("created at: %w", err)
	}
	if _, err := time.Parse(time.RFC3339Nano, ingestedAt); err != nil {
		return fmt.Errorf("ingested at: %w", err)
	}
	if !strings.HasPrefix(permalink, "http://") && !strings.HasPrefix(permalink, "https://") {
		return fmt.Errorf("permalink must be absolute, got %q", permalink)
	}
	return nil
}

func routingAttributes(source string, kind Kind, subreddit, redditID string) map[string]string {
	return map[string]string{
		"source":    source,
		"itemKind":  string(kind),
		"subreddit": subreddit,
		"redditId":  redditID,
	}
}
