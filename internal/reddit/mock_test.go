package reddit

import (
	"context"
	"testing"
)

func TestMockClient_PaginatesCommentsToExhaustion(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	var total int
	seen := map[string]bool{}
	after := ""
	pages := 0
	for {
		page, err := client.NewComments(ctx, "stocks", after)
		if err != nil {
			t.Fatalf("new comments: %v", err)
		}
		pages++
		for _, c := range page.Items {
			if seen[c.RedditID] {
				t.Fatalf("duplicate comment id %q", c.RedditID)
			}
			seen[c.RedditID] = true
		}
		total += len(page.Items)
		if page.After == "" {
			break
		}
		after = page.After
	}

	if pages != 4 {
		t.Errorf("pages = %d, want 4", pages)
	}
	if total != mockCommentCount {
		t.Errorf("total comments = %d, want %d", total, mockCommentCount)
	}
}

func TestMockClient_PostsFitOnePage(t *testing.T) {
	client := NewMockClient()

	page, err := client.NewPosts(context.Background(), "wallstreetbets", "")
	if err != nil {
		t.Fatalf("new posts: %v", err)
	}
	if len(page.Items) != mockPostCount {
		t.Errorf("posts = %d, want %d", len(page.Items), mockPostCount)
	}
	if page.After != "" {
		t.Errorf("after = %q, want empty on final page", page.After)
	}
}

func TestMockClient_NewestFirstAndStablePerSubreddit(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	first, err := client.NewPosts(ctx, "options", "")
	if err != nil {
		t.Fatalf("new posts: %v", err)
	}
	for i := 1; i < len(first.Items); i++ {
		if first.Items[i].CreatedTime().After(first.Items[i-1].CreatedTime()) {
			t.Fatalf("posts not newest-first at index %d", i)
		}
	}

	// A later fetch reuses the seeded data instead of regenerating it.
	again, err := client.NewPosts(ctx, "options", "")
	if err != nil {
		t.Fatalf("new posts: %v", err)
	}
	if !again.Items[0].CreatedTime().Equal(first.Items[0].CreatedTime()) {
		t.Error("repeat fetch regenerated data")
	}
}

func TestParseMockCursor(t *testing.T) {
	cases := []struct {
		after string
		want  int
	}{
		{"", 0},
		{"mock_100", 100},
		{"mock_-3", 0},
		{"t3_abc", 0},
		{"mock_x", 0},
	}
	for _, tc := range cases {
		if got := parseMockCursor(tc.after); got != tc.want {
			t.Errorf("parseMockCursor(%q) = %d, want %d", tc.after, got, tc.want)
		}
	}
}

func TestNormalizeMockName(t *testing.T) {
	if got := normalizeMockName("WallStreet-Bets_2"); got != "wallstreetbets2" {
		t.Errorf("normalized = %q", got)
	}
}
