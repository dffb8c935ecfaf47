// Package relay drains the postgres event outbox into Kafka for the external
// indexer. At-least-once delivery: rows are marked published only after the
// produce acks, so consumers must dedupe on event id.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"provena/internal/events/store/postgres"
)

const (
	defaultTopic     = "provena.events"
	defaultInterval  = time.Second
	defaultBatchSize = 256
)

// Outbox is the slice of the postgres store the relay needs.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxRow, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error
}

// Producer is the kgo.Client seam; tests inject a fake.
type Producer interface {
	ProduceSync(ctx context.Context, records ...*kgo.Record) kgo.ProduceResults
}

// Relay polls the outbox and publishes pending events.
type Relay struct {
	outbox    Outbox
	producer  Producer
	logger    *slog.Logger
	topic     string
	interval  time.Duration
	batchSize int
}

type Option func(*Relay)

func WithTopic(topic string) Option {
	return func(r *Relay) { r.topic = topic }
}

func WithInterval(interval time.Duration) Option {
	return func(r *Relay) { r.interval = interval }
}

func WithBatchSize(batchSize int) Option {
	return func(r *Relay) { r.batchSize = batchSize }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func New(outbox Outbox, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     defaultTopic,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureTopic creates the relay topic if the cluster does not have it yet.
// Call once at startup with an admin-capable client.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Run polls until the context is cancelled. Errors are logged and retried on
// the next tick; the relay never drops rows.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				if r.logger != nil {
					r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
				}
			}
		}
	}
}

// Drain publishes one batch of pending rows and marks them published.
func (r *Relay) Drain(ctx context.Context) error {
	rows, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(rows))
	for i, row := range rows {
		records[i] = &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.ID.String()),
			Value: row.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "action", Value: []byte(row.Action)},
			},
		}
	}

	if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce batch: %w", err)
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if r.logger != nil {
		r.logger.DebugContext(ctx, "outbox batch relayed", "count", len(rows))
	}
	return nil
}
