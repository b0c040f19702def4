package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIBase  = "https://oauth.reddit.com"
	defaultAuthBase = "https://www.reddit.com"

	requestTimeout     = 30 * time.Second
	minRequestInterval = 300 * time.Millisecond
	pageLimit          = 100
	maxAttempts        = 5
)

// Client fetches listing pages from the Reddit API with bearer
// authentication, retrying transient failures with backoff.
type Client struct {
	http      *http.Client
	tokens    *TokenSource
	limiter   *Limiter
	userAgent string
	apiBase   string
	log       *slog.Logger
	sleep     func(context.Context, time.Duration) error
}

// NewClient validates the credentials and returns an authenticated
// listing client.
func NewClient(creds Credentials, log *slog.Logger) (*Client, error) {
	tokens, err := NewTokenSource(creds)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	limiter := NewLimiter(minRequestInterval)
	tokens.limiter = limiter
	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		tokens:    tokens,
		limiter:   limiter,
		userAgent: creds.UserAgent,
		apiBase:   defaultAPIBase,
		log:       log.With("component", "reddit-client"),
		sleep:     sleepContext,
	}, nil
}

// NewPosts fetches one page of /r/{subreddit}/new. Children that are
// not posts or fail validation are skipped with a warning.
func (c *Client) NewPosts(ctx context.Context, subreddit, after string) (Page[Post], error) {
	list, err := c.fetchListing(ctx, "/r/"+subreddit+"/new", after)
	if err != nil {
		return Page[Post]{}, err
	}

	page := Page[Post]{After: list.after()}
	for _, child := range list.Data.Children {
		if child.Kind != kindPost {
			continue
		}

		var data postData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			c.log.Warn("skipped invalid post payload", "subreddit", subreddit, "err", err)
			continue
		}
		if err := data.validate(); err != nil {
			c.log.Warn("skipped invalid post payload", "subreddit", subreddit, "err", err)
			continue
		}

		page.Items = append(page.Items, Post{
			RedditID:     data.ID,
			Subreddit:    data.Subreddit,
			Author:       data.Author,
			CreatedUTC:   data.CreatedUTC,
			Score:        data.Score,
			Permalink:    data.Permalink,
			Title:        data.Title,
			Body:         data.Selftext,
			CommentCount: data.NumComments,
		})
	}
	return page, nil
}

// NewComments fetches one page of /r/{subreddit}/comments. Children
// that are not comments or fail validation are skipped with a warning.
func (c *Client) NewComments(ctx context.Context, subreddit, after string) (Page[Comment], error) {
	list, err := c.fetchListing(ctx, "/r/"+subreddit+"/comments", after)
	if err != nil {
		return Page[Comment]{}, err
	}

	page := Page[Comment]{After: list.after()}
	for _, child := range list.Data.Children {
		if child.Kind != kindComment {
			continue
		}

		var data commentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			c.log.Warn("skipped invalid comment payload", "subreddit", subreddit, "err", err)
			continue
		}
		if err := data.validate(); err != nil {
			c.log.Warn("skipped invalid comment payload", "subreddit", subreddit, "err", err)
			continue
		}

		page.Items = append(page.Items, Comment{
			RedditID:       data.ID,
			Subreddit:      data.Subreddit,
			Author:         data.Author,
			CreatedUTC:     data.CreatedUTC,
			Score:          data.Score,
			Permalink:      data.Permalink,
			Body:           data.Body,
			ParentRedditID: stripFullnamePrefix(data.ParentID),
			PostRedditID:   stripFullnamePrefix(data.LinkID),
		})
	}
	return page, nil
}

func (c *Client) fetchListing(ctx context.Context, path, after string) (*listing, error) {
	query := url.Values{}
	query.Set("raw_json", "1")
	query.Set("limit", strconv.Itoa(pageLimit))
	if after != "" {
		query.Set("after", after)
	}

	var list listing
	if err := c.getJSON(ctx, c.apiBase+path+".json?"+query.Encode(), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// getJSON drives the retry state machine: up to maxAttempts attempts,
// each holding the limiter's in-flight permit for the duration of the
// request and authenticated with the cached token. 401 invalidates the
// token, 429 and 5xx back off, any other non-success status fails
// immediately, and network-level failures retry with a shorter backoff.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			lastErr = err
			if attempt == maxAttempts {
				break
			}
			if err := c.backoff(ctx, attempt, 500*time.Millisecond, "token refresh failed", err); err != nil {
				return err
			}
			continue
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", c.userAgent)

		if err := c.limiter.Begin(ctx); err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.limiter.End()
			lastErr = err
			if attempt == maxAttempts {
				break
			}
			if err := c.backoff(ctx, attempt, 500*time.Millisecond, "request failed", err); err != nil {
				return err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		c.limiter.Observe(resp.Header)
		c.limiter.End()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			c.tokens.Invalidate()
			lastErr = ErrAuthExpired
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := maxDuration(
				parseRetryAfter(resp.Header.Get("Retry-After")),
				c.limiter.QuotaWait(),
				time.Duration(attempt)*time.Second,
			)
			c.log.Warn("rate limited", "attempt", attempt, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			lastErr = ErrRateLimited
			continue

		case resp.StatusCode >= 500:
			wait := time.Duration(attempt) * time.Second
			c.log.Warn("transient server error", "attempt", attempt, "status", resp.StatusCode, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			lastErr = &ServerError{Status: resp.StatusCode}
			continue

		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return &RequestError{Status: resp.StatusCode, Body: truncateBody(body)}
		}

		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if attempt == maxAttempts {
				break
			}
			if err := c.backoff(ctx, attempt, 500*time.Millisecond, "read failed", readErr); err != nil {
				return err
			}
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = fmt.Errorf("decode response: %w", err)
			if attempt == maxAttempts {
				break
			}
			if err := c.backoff(ctx, attempt, 500*time.Millisecond, "decode failed", lastErr); err != nil {
				return err
			}
			continue
		}

		return nil
	}

	return &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

func (c *Client) backoff(ctx context.Context, attempt int, unit time.Duration, msg string, cause error) error {
	wait := time.Duration(attempt) * unit
	c.log.Warn("retrying request", "attempt", attempt, "wait", wait, "reason", msg, "err", cause)
	return c.sleep(ctx, wait)
}

const (
	kindPost    = "t3"
	kindComment = "t1"
)

type listing struct {
	Data struct {
		After    *string `json:"after"`
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (l *listing) after() string {
	if l.Data.After == nil {
		return ""
	}
	return *l.Data.After
}

type postData struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	Permalink   string  `json:"permalink"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	NumComments int     `json:"num_comments"`
}

func (d postData) validate() error {
	if d.ID == "" {
		return fmt.Errorf("post: missing id")
	}
	if d.Subreddit == "" {
		return fmt.Errorf("post %s: missing subreddit", d.ID)
	}
	if d.Permalink == "" {
		return fmt.Errorf("post %s: missing permalink", d.ID)
	}
	if d.Title == "" {
		return fmt.Errorf("post %s: missing title", d.ID)
	}
	if d.NumComments < 0 {
		return fmt.Errorf("post %s: negative comment count", d.ID)
	}
	return nil
}

type commentData struct {
	ID         string  `json:"id"`
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
	Permalink  string  `json:"permalink"`
	Body       string  `json:"body"`
	ParentID   string  `json:"parent_id"`
	LinkID     string  `json:"link_id"`
}

func (d commentData) validate() error {
	if d.ID == "" {
		return fmt.Errorf("comment: missing id")
	}
	if d.Subreddit == "" {
		return fmt.Errorf("comment %s: missing subreddit", d.ID)
	}
	if d.Permalink == "" {
		return fmt.Errorf("comment %s: missing permalink", d.ID)
	}
	if d.ParentID == "" {
		return fmt.Errorf("comment %s: missing parent_id", d.ID)
	}
	if d.LinkID == "" {
		return fmt.Errorf("comment %s: missing link_id", d.ID)
	}
	return nil
}

// stripFullnamePrefix turns a fullname like "t1_abc" into "abc".
func stripFullnamePrefix(fullname string) string {
	i := strings.Index(fullname, "_")
	if i == -1 {
		return fullname
	}
	return fullname[i+1:]
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
}

func maxDuration(durations ...time.Duration) time.Duration {
	var out time.Duration
	for _, d := range durations {
		if d > out {
			out = d
		}
	}
	return out
}
