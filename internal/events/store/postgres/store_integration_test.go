//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"provena/internal/events"
	"provena/internal/events/store/postgres"
	id "provena/pkg/domain"
	txcontext "provena/pkg/platform/tx"
	"provena/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.ApplySchema(context.Background(), postgres.Schema))
	s.store = postgres.New(s.postgres.DB)
}

func (s *OutboxSuite) TearDownSuite() {
	s.postgres.Close(context.Background())
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "events_outbox"))
}

func (s *OutboxSuite) newEvent(action events.Action, offset time.Duration) events.Event {
	return events.Event{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond).Add(offset),
		Actor:     id.AccountID("acct-admin"),
		Account:   id.AccountID("acct-1"),
	}
}

func (s *OutboxSuite) TestAppendAndFetch() {
	ctx := context.Background()

	first := s.newEvent(events.ActionIdentityRegistered, 0)
	second := s.newEvent(events.ActionClaimAdded, time.Second)
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	rows, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)

	s.Run("rows come back in creation order", func() {
		s.Equal(first.ID, rows[0].ID)
		s.Equal(second.ID, rows[1].ID)
		s.Equal(string(events.ActionIdentityRegistered), rows[0].Action)
	})

	s.Run("payload is the full event", func() {
		s.Contains(string(rows[0].Payload), `"acct-admin"`)
	})

	s.Run("limit bounds the batch", func() {
		rows, err := s.store.FetchUnpublished(ctx, 1)
		s.Require().NoError(err)
		s.Len(rows, 1)
	})
}

func (s *OutboxSuite) TestMarkPublished() {
	ctx := context.Background()

	first := s.newEvent(events.ActionIdentityRegistered, 0)
	second := s.newEvent(events.ActionClaimAdded, time.Second)
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{first.ID}, time.Now().UTC()))

	rows, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(second.ID, rows[0].ID)

	s.Run("empty batch is a no-op", func() {
		s.NoError(s.store.MarkPublished(ctx, nil, time.Now().UTC()))
	})

	s.Run("published rows stay published", func() {
		s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{second.ID}, time.Now().UTC()))
		rows, err := s.store.FetchUnpublished(ctx, 10)
		s.Require().NoError(err)
		s.Empty(rows)
	})
}

// TestAppendWithinTransaction verifies the outbox rides the caller's
// transaction: a rollback leaves no event behind.
func (s *OutboxSuite) TestAppendWithinTransaction() {
	ctx := context.Background()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	txCtx := txcontext.WithTx(ctx, tx)
	s.Require().NoError(s.store.Append(txCtx, s.newEvent(events.ActionIdentityRegistered, 0)))
	s.Require().NoError(tx.Rollback())

	rows, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(rows)
}
