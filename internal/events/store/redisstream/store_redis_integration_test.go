//go:build integration

package redisstream_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"provena/internal/events"
	"provena/internal/events/store/redisstream"
	id "provena/pkg/domain"
	"provena/pkg/testutil/containers"
)

// RedisStreamIntegrationSuite runs against a real Redis; miniredis covers the
// fast path, this covers stream trimming and ordering semantics of the real
// server.
type RedisStreamIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *redisstream.Store
}

func TestRedisStreamIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStreamIntegrationSuite))
}

func (s *RedisStreamIntegrationSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisStreamIntegrationSuite) TearDownSuite() {
	s.redis.Close(context.Background())
}

func (s *RedisStreamIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = redisstream.New(s.redis.Client, redisstream.WithStream("provena:test"))
}

func (s *RedisStreamIntegrationSuite) newEvent(action events.Action) events.Event {
	return events.Event{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now().UTC(),
		Actor:     id.AccountID("acct-admin"),
	}
}

func (s *RedisStreamIntegrationSuite) TestAppendPreservesOrder() {
	ctx := context.Background()

	first := s.newEvent(events.ActionAssetMinted)
	second := s.newEvent(events.ActionAssetTransferred)
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	entries, err := s.redis.Client.XRange(ctx, "provena:test", "-", "+").Result()
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	s.Equal(first.ID.String(), entries[0].Values["id"])
	s.Equal(string(events.ActionAssetMinted), entries[0].Values["action"])
	s.Equal(second.ID.String(), entries[1].Values["id"])
	s.Contains(entries[0].Values["payload"], `"acct-admin"`)
}

func (s *RedisStreamIntegrationSuite) TestMaxLenTrimsStream() {
	ctx := context.Background()
	trimmed := redisstream.New(s.redis.Client,
		redisstream.WithStream("provena:trimmed"),
		redisstream.WithMaxLen(10),
	)

	// Approximate trimming needs enough volume to kick in.
	for i := 0; i < 500; i++ {
		s.Require().NoError(trimmed.Append(ctx, s.newEvent(events.ActionAssetMinted)))
	}

	length, err := s.redis.Client.XLen(ctx, "provena:trimmed").Result()
	s.Require().NoError(err)
	s.Less(length, int64(500), "stream should be trimmed below the append count")
}
