package normalize

import (
	"testing"
	"time"

	"github.com/rsentiment/rsent/internal/item"
	"github.com/rsentiment/rsent/internal/reddit"
)

var ingestedAt = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func samplePost(id string) reddit.Post {
	return reddit.Post{
		RedditID:     id,
		Subreddit:    "stocks",
		Author:       "trader",
		CreatedUTC:   1767225600, // 2026-01-01T00:00:00Z
		Score:        10,
		Permalink:    "/r/stocks/comments/" + id + "/title/",
		Title:        "earnings",
		Body:         "numbers inside",
		CommentCount: 3,
	}
}

func sampleComment(id string) reddit.Comment {
	return reddit.Comment{
		RedditID:       id,
		Subreddit:      "stocks",
		Author:         "   ",
		CreatedUTC:     1767225660.5,
		Score:          1,
		Permalink:      "/r/stocks/comments/p1/title/" + id + "/",
		Body:           "agreed",
		ParentRedditID: "p1",
		PostRedditID:   "p1",
	}
}

func TestPost_BuildsCanonicalEnvelope(t *testing.T) {
	envelope := Post(samplePost("p1"), ingestedAt)

	if err := envelope.Validate(); err != nil {
		t.Fatalf("envelope invalid: %v", err)
	}
	if envelope.CreatedAt != "2026-01-01T00:00:00Z" {
		t.Errorf("created at = %q", envelope.CreatedAt)
	}
	if envelope.IngestedAt != "2026-03-01T12:30:00Z" {
		t.Errorf("ingested at = %q", envelope.IngestedAt)
	}
	if envelope.Permalink != "https://reddit.com/r/stocks/comments/p1/title/" {
		t.Errorf("permalink = %q, want absolute form", envelope.Permalink)
	}
	if envelope.ItemKind != item.KindPost {
		t.Errorf("kind = %q", envelope.ItemKind)
	}
}

func TestComment_BlankAuthorBecomesDeleted(t *testing.T) {
	envelope := Comment(sampleComment("c1"), ingestedAt)

	if envelope.Author != "[deleted]" {
		t.Errorf("author = %q, want [deleted]", envelope.Author)
	}
	if err := envelope.Validate(); err != nil {
		t.Fatalf("envelope invalid: %v", err)
	}
}

func TestPost_AbsolutePermalinkKeptVerbatim(t *testing.T) {
	post := samplePost("p2")
	post.Permalink = "https://old.reddit.com/r/stocks/comments/p2/"

	if got := Post(post, ingestedAt).Permalink; got != post.Permalink {
		t.Errorf("permalink = %q, want unchanged", got)
	}
}

func TestMerge_DropsDuplicatesWithinKind(t *testing.T) {
	posts := []reddit.Post{samplePost("p1"), samplePost("p2"), samplePost("p1")}
	comments := []reddit.Comment{sampleComment("c1"), sampleComment("c1")}

	items := Merge(posts, comments, ingestedAt)

	if len(items) != 3 {
		t.Fatalf("items = %d, want 3 after dedup", len(items))
	}
	wantKeys := []item.Key{
		{Kind: item.KindPost, RedditID: "p1"},
		{Kind: item.KindPost, RedditID: "p2"},
		{Kind: item.KindComment, RedditID: "c1"},
	}
	for i, want := range wantKeys {
		if items[i].Key() != want {
			t.Errorf("item %d key = %+v, want %+v", i, items[i].Key(), want)
		}
	}
}

func TestMerge_SameIDAcrossKindsKeepsBoth(t *testing.T) {
	items := Merge(
		[]reddit.Post{samplePost("shared")},
		[]reddit.Comment{sampleComment("shared")},
		ingestedAt,
	)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (kinds dedup independently)", len(items))
	}
}

func TestMerge_PostsPrecedeComments(t *testing.T) {
	items := Merge(
		[]reddit.Post{samplePost("p1")},
		[]reddit.Comment{sampleComment("c1")},
		ingestedAt,
	)
	if items[0].Key().Kind != item.KindPost || items[1].Key().Kind != item.KindComment {
		t.Errorf("order = [%v, %v], want posts first", items[0].Key(), items[1].Key())
	}
}
