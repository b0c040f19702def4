// Package publish validates canonical envelopes and forwards them to
// the raw-items topic with routing attributes.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/pubsub"

	"github.com/rsentiment/rsent/internal/item"
)

// Sender delivers one encoded message with its routing attributes.
type Sender interface {
	Send(ctx context.Context, data []byte, attributes map[string]string) error
}

// Publisher validates items against the canonical schema before
// sending. Delivery is at-least-once; a failed call may leave earlier
// items of the batch already delivered.
type Publisher struct {
	sender Sender
	log    *slog.Logger
}

// New returns a publisher over the given sender.
func New(sender Sender, log *slog.Logger) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{sender: sender, log: log.With("component", "publisher")}, nil
}

// Publish validates then sends each item in order, returning the count
// delivered. The first invalid item or send failure fails the call;
// items already sent stay sent, so callers must treat partial publish
// as a possible outcome of an error.
func (p *Publisher) Publish(ctx context.Context, items []item.Item) (int, error) {
	sent := 0
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return sent, fmt.Errorf("validate item: %w", err)
		}

		data, err := json.Marshal(it)
		if err != nil {
			return sent, fmt.Errorf("encode item: %w", err)
		}

		if err := p.sender.Send(ctx, data, it.Attributes()); err != nil {
			return sent, fmt.Errorf("send item: %w", err)
		}
		sent++
	}
	return sent, nil
}

// PubSubSender publishes to a GCP Pub/Sub topic, awaiting each ack.
type PubSubSender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub connects to the project and targets the given topic.
func NewPubSub(ctx context.Context, projectID, topicName string) (*PubSubSender, error) {
	if projectID == "" {
		return nil, errors.New("project id is required")
	}
	if topicName == "" {
		return nil, errors.New("topic name is required")
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &PubSubSender{client: client, topic: client.Topic(topicName)}, nil
}

func (s *PubSubSender) Send(ctx context.Context, data []byte, attributes map[string]string) error {
	result := s.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic.ID(), err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (s *PubSubSender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}

// WriterSender writes each envelope as a JSON line. Backs dry runs.
type WriterSender struct {
	w io.Writer
}

// NewWriter returns a sender writing JSON lines to w.
func NewWriter(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

func (s *WriterSender) Send(_ context.Context, data []byte, _ map[string]string) error {
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write item: %w", err)
	}
	return nil
}
