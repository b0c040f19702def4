package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/rsentiment/rsent/internal/item"
)

type recordedMessage struct {
	data       []byte
	attributes map[string]string
}

type fakeSender struct {
	messages []recordedMessage
	failAt   int // 1-based send index to fail on; 0 never fails
	err      error
}

func (f *fakeSender) Send(_ context.Context, data []byte, attributes map[string]string) error {
	if f.failAt > 0 && len(f.messages)+1 == f.failAt {
		return f.err
	}
	f.messages = append(f.messages, recordedMessage{data: data, attributes: attributes})
	return nil
}

func testPost(id string) item.RawPost {
	return item.RawPost{
		MessageVersion: item.MessageVersion,
		Source:         item.SourceReddit,
		ItemKind:       item.KindPost,
		RedditID:       id,
		Subreddit:      "stocks",
		Author:         "trader",
		CreatedAt:      "2026-03-01T12:00:00Z",
		IngestedAt:     "2026-03-01T12:01:00Z",
		Permalink:      "https://reddit.com/r/stocks/comments/" + id + "/x/",
		Title:          "title " + id,
	}
}

func newTestPublisher(t *testing.T, sender Sender) *Publisher {
	t.Helper()
	p, err := New(sender, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return p
}

func TestNew_RequiresSender(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for nil sender")
	}
}

func TestPublish_SendsEncodedItemsWithAttributes(t *testing.T) {
	sender := &fakeSender{}
	p := newTestPublisher(t, sender)

	sent, err := p.Publish(context.Background(), []item.Item{testPost("a"), testPost("b")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if sent != 2 || len(sender.messages) != 2 {
		t.Fatalf("sent = %d, messages = %d, want 2 each", sent, len(sender.messages))
	}

	var decoded item.RawPost
	if err := json.Unmarshal(sender.messages[0].data, &decoded); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if decoded.RedditID != "a" || decoded.ItemKind != item.KindPost {
		t.Errorf("decoded = %+v", decoded)
	}
	if got := sender.messages[1].attributes["redditId"]; got != "b" {
		t.Errorf("attributes redditId = %q, want b", got)
	}
	if got := sender.messages[1].attributes["itemKind"]; got != "post" {
		t.Errorf("attributes itemKind = %q, want post", got)
	}
}

func TestPublish_InvalidItemStopsBatchAndReportsDelivered(t *testing.T) {
	sender := &fakeSender{}
	p := newTestPublisher(t, sender)

	invalid := testPost("bad")
	invalid.Title = ""

	sent, err := p.Publish(context.Background(), []item.Item{testPost("a"), invalid, testPost("c")})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validate item") {
		t.Errorf("err = %q", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1 (items before the invalid one stay delivered)", sent)
	}
	if len(sender.messages) != 1 {
		t.Errorf("messages = %d, want 1", len(sender.messages))
	}
}

func TestPublish_SendFailureReportsPartialDelivery(t *testing.T) {
	boom := errors.New("topic unavailable")
	sender := &fakeSender{failAt: 3, err: boom}
	p := newTestPublisher(t, sender)

	sent, err := p.Publish(context.Background(), []item.Item{testPost("a"), testPost("b"), testPost("c")})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
}

func TestPublish_EmptyBatch(t *testing.T) {
	sender := &fakeSender{}
	p := newTestPublisher(t, sender)

	sent, err := p.Publish(context.Background(), nil)
	if err != nil || sent != 0 {
		t.Fatalf("sent = %d, err = %v, want 0 and nil", sent, err)
	}
}

func TestWriterSender_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	p := newTestPublisher(t, NewWriter(&buf))

	if _, err := p.Publish(context.Background(), []item.Item{testPost("a"), testPost("b")}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	for i, line := range lines {
		var decoded item.RawPost
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Errorf("line %d not valid JSON: %v", i, err)
		}
	}
}
