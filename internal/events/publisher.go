package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"provena/pkg/requestcontext"
)

// Store is an append-only sink for emitted events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher emits events with fail-closed semantics: the caller blocks until
// the append succeeds, and a failed append must fail the calling operation.
// Services emit inside their commit path so an unrecordable transition never
// becomes observable.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit assigns the event id, timestamp, and request correlation, then
// appends. Returns an error if persistence fails; the caller MUST fail its
// operation.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("event requires an action")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "event persistence failed",
				"action", event.Action,
				"error", err,
			)
		}
		return fmt.Errorf("event persistence failed: %w", err)
	}
	return nil
}
