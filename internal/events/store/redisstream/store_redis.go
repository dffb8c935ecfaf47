// Package redisstream appends events to a Redis Stream for the notification
// layer. Consumers use XREAD/consumer groups on their side; the core only
// writes.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"provena/internal/events"
)

const defaultStream = "provena:events"

// Store writes each event as one stream entry. The full event rides as a
// JSON payload; action and actor are duplicated as top-level fields so
// consumers can filter without decoding.
type Store struct {
	client *redis.Client
	stream string
	maxLen int64
}

type Option func(*Store)

// WithStream overrides the stream key.
func WithStream(stream string) Option {
	return func(s *Store) { s.stream = stream }
}

// WithMaxLen caps the stream length (approximate trimming). Zero disables
// trimming.
func WithMaxLen(maxLen int64) Option {
	return func(s *Store) { s.maxLen = maxLen }
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, stream: defaultStream}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Append(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":      event.ID.String(),
			"action":  string(event.Action),
			"actor":   event.Actor.String(),
			"payload": string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
