// Package postgres implements the event store as a transactional outbox.
// Events land in the outbox table in the same transaction as the state change
// that produced them; the Kafka relay drains the table and marks rows
// published. Kafka is the source of truth for downstream indexers.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"provena/internal/events"
	txcontext "provena/pkg/platform/tx"
)

// Schema is the DDL the store expects. Applied by deployment tooling, kept
// here so integration tests and operators have one reference.
const Schema = `
CREATE TABLE IF NOT EXISTS events_outbox (
	id            UUID PRIMARY KEY,
	action        TEXT NOT NULL,
	actor         TEXT NOT NULL DEFAULT '',
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	published_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS events_outbox_unpublished_idx
	ON events_outbox (created_at) WHERE published_at IS NULL;
`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes an event row to the outbox for relay publishing.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx,
		`INSERT INTO events_outbox (id, action, actor, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, string(event.Action), event.Actor.String(), payload, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// OutboxRow is one unpublished event ready for relay.
type OutboxRow struct {
	ID      uuid.UUID
	Action  string
	Payload []byte
}

// FetchUnpublished returns up to limit unpublished rows in creation order.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, payload FROM events_outbox
		 WHERE published_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.Action, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkPublished stamps rows as delivered to Kafka.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, eventID := range ids {
		raw[i] = eventID.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE events_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		publishedAt, pq.Array(raw),
	)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
