package events

import (
	"context"
	"encoding/json"
	"time"
)

// Interaction event kinds.
const (
	KindLike    = "like"
	KindComment = "comment"
)

// InteractionEvent describes a completed ledger mutation. Events feed the
// notification worker and are best-effort: a publish failure never rolls the
// mutation back.
type InteractionEvent struct {
	Kind       string    `json:"kind"`
	PostID     int       `json:"post_id"`
	UserID     int       `json:"user_id"`
	Liked      bool      `json:"liked,omitempty"`
	CommentID  int       `json:"comment_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Publisher emits interaction events to a fixed channel on a backend.
type Publisher struct {
	backend Backend
	channel string
}

// NewPublisher constructs a publisher for the given backend and channel.
func NewPublisher(backend Backend, channel string) *Publisher {
	return &Publisher{backend: backend, channel: channel}
}

// PublishInteraction serializes the event and sends it to the channel.
func (p *Publisher) PublishInteraction(ctx context.Context, event InteractionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, p.channel, data, map[string]string{"kind": event.Kind})
	return err
}

// Subscribe consumes interaction events from the channel.
func (p *Publisher) Subscribe(ctx context.Context, handler Handler) error {
	return p.backend.Subscribe(ctx, p.channel, handler)
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}
