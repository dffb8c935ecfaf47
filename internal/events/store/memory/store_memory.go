package memory

import (
	"context"
	"sync"

	"provena/internal/events"
)

// Store is an in-memory append-only event log. Default sink for
// single-process deployments and the fixture for service tests.
type Store struct {
	mu     sync.RWMutex
	events []events.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of all appended events in emission order.
func (s *Store) List(_ context.Context) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events...), nil
}

// ListByAction filters the log by action name.
func (s *Store) ListByAction(_ context.Context, action events.Action) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out, nil
}
