package redisstream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"provena/internal/events"
	id "provena/pkg/domain"
)

type RedisStreamSuite struct {
	suite.Suite
	mini   *miniredis.Miniredis
	client *redis.Client
	store  *Store
}

func TestRedisStreamSuite(t *testing.T) {
	suite.Run(t, new(RedisStreamSuite))
}

func (s *RedisStreamSuite) SetupTest() {
	mini, err := miniredis.Run()
	s.Require().NoError(err)
	s.mini = mini
	s.client = redis.NewClient(&redis.Options{Addr: mini.Addr()})
	s.store = New(s.client)
}

func (s *RedisStreamSuite) TearDownTest() {
	_ = s.client.Close()
	s.mini.Close()
}

func (s *RedisStreamSuite) TestAppendWritesStreamEntry() {
	event := events.Event{
		ID:      uuid.New(),
		Action:  events.ActionAssetMinted,
		Actor:   id.AccountID("acct-minter"),
		AssetID: id.AssetID(7),
	}
	s.Require().NoError(s.store.Append(context.Background(), event))

	entries, err := s.client.XRange(context.Background(), defaultStream, "-", "+").Result()
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(string(events.ActionAssetMinted), entries[0].Values["action"])
	s.Equal("acct-minter", entries[0].Values["actor"])

	var decoded events.Event
	s.Require().NoError(json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &decoded))
	s.Equal(event.ID, decoded.ID)
	s.Equal(id.AssetID(7), decoded.AssetID)
}

func (s *RedisStreamSuite) TestCustomStreamKey() {
	store := New(s.client, WithStream("other:stream"))
	s.Require().NoError(store.Append(context.Background(), events.Event{
		ID:     uuid.New(),
		Action: events.ActionListingCreated,
	}))

	length, err := s.client.XLen(context.Background(), "other:stream").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), length)
}
