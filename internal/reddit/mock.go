package reddit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	mockPageSize     = 100
	mockPostCount    = 36
	mockCommentCount = 320
	mockCursorPrefix = "mock_"
)

// MockClient is an offline API implementation that fabricates
// deterministic posts and comments per subreddit. Used when
// INGESTER_SOURCE=mock so the pipeline can run without credentials.
type MockClient struct {
	now func() time.Time

	mu   sync.Mutex
	data map[string]*mockSubredditData
}

type mockSubredditData struct {
	posts    []Post
	comments []Comment
}

// NewMockClient returns a mock client seeded from the current time.
func NewMockClient() *MockClient {
	return &MockClient{
		now:  time.Now,
		data: make(map[string]*mockSubredditData),
	}
}

func (m *MockClient) NewPosts(_ context.Context, subreddit, after string) (Page[Post], error) {
	data := m.subredditData(subreddit)
	return slicePage(data.posts, after), nil
}

func (m *MockClient) NewComments(_ context.Context, subreddit, after string) (Page[Comment], error) {
	data := m.subredditData(subreddit)
	return slicePage(data.comments, after), nil
}

func (m *MockClient) subredditData(subreddit string) *mockSubredditData {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.data[subreddit]; ok {
		return cached
	}

	created := buildMockData(subreddit, m.now())
	m.data[subreddit] = created
	return created
}

func buildMockData(subreddit string, now time.Time) *mockSubredditData {
	nowSeconds := now.Unix()
	prefix := normalizeMockName(subreddit)

	posts := make([]Post, 0, mockPostCount)
	for i := 0; i < mockPostCount; i++ {
		redditID := fmt.Sprintf("%sp%04d", prefix, i+1)
		posts = append(posts, Post{
			RedditID:     redditID,
			Subreddit:    subreddit,
			Author:       fmt.Sprintf("mock_author_%d", i%20+1),
			CreatedUTC:   float64(nowSeconds - int64(i)*40*60),
			Score:        10 + i%200,
			Permalink:    fmt.Sprintf("/r/%s/comments/%s/mock-post-%d/", subreddit, redditID, i+1),
			Title:        fmt.Sprintf("[mock] %s discussion %d", subreddit, i+1),
			Body:         fmt.Sprintf("Mock post content %d for %s", i+1, subreddit),
			CommentCount: 5 + i%80,
		})
	}

	comments := make([]Comment, 0, mockCommentCount)
	for i := 0; i < mockCommentCount; i++ {
		redditID := fmt.Sprintf("%sc%05d", prefix, i+1)
		parent := posts[i%len(posts)]
		comments = append(comments, Comment{
			RedditID:       redditID,
			Subreddit:      subreddit,
			Author:         fmt.Sprintf("mock_commenter_%d", i%45+1),
			CreatedUTC:     float64(nowSeconds - int64(i)*4*60),
			Score:          i % 60,
			Permalink:      parent.Permalink + redditID + "/",
			Body:           fmt.Sprintf("Mock comment %d on %s", i+1, subreddit),
			ParentRedditID: parent.RedditID,
			PostRedditID:   parent.RedditID,
		})
	}

	return &mockSubredditData{posts: posts, comments: comments}
}

func slicePage[T any](items []T, after string) Page[T] {
	start := parseMockCursor(after)
	if start > len(items) {
		start = len(items)
	}
	end := start + mockPageSize
	if end > len(items) {
		end = len(items)
	}

	page := Page[T]{Items: items[start:end]}
	if end < len(items) {
		page.After = mockCursorPrefix + strconv.Itoa(end)
	}
	return page
}

func parseMockCursor(after string) int {
	if !strings.HasPrefix(after, mockCursorPrefix) {
		return 0
	}
	parsed, err := strconv.Atoi(strings.TrimPrefix(after, mockCursorPrefix))
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func normalizeMockName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
