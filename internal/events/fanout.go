package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"provena/pkg/platform/circuit"
)

// Fanout appends to one durable primary sink and mirrors to any number of
// best-effort sinks. The primary keeps the fail-closed contract; mirror
// failures are logged and swallowed so a stream outage cannot block state
// transitions. Each mirror sits behind a circuit breaker: once it opens,
// appends to that mirror are skipped until a probe append closes it again.
type Fanout struct {
	primary Store
	mirrors []*mirror
	logger  *slog.Logger
}

type mirror struct {
	store   Store
	breaker *circuit.Breaker
	// skipped counts appends dropped while the breaker was open; used as a
	// coarse probe interval so a recovered mirror gets retried.
	skipped atomic.Int64
}

const mirrorProbeInterval = 10

func NewFanout(primary Store, logger *slog.Logger, mirrors ...Store) *Fanout {
	f := &Fanout{primary: primary, logger: logger}
	for i, store := range mirrors {
		f.mirrors = append(f.mirrors, &mirror{
			store:   store,
			breaker: circuit.New(fmt.Sprintf("event-mirror-%d", i), circuit.WithFailureThreshold(5)),
		})
	}
	return f
}

func (f *Fanout) Append(ctx context.Context, event Event) error {
	if err := f.primary.Append(ctx, event); err != nil {
		return err
	}
	for _, m := range f.mirrors {
		f.mirrorAppend(ctx, m, event)
	}
	return nil
}

func (f *Fanout) mirrorAppend(ctx context.Context, m *mirror, event Event) {
	if m.breaker.IsOpen() {
		if m.skipped.Add(1) < mirrorProbeInterval {
			return
		}
		m.skipped.Store(0)
	}

	err := m.store.Append(ctx, event)
	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed && f.logger != nil {
			f.logger.InfoContext(ctx, "event mirror recovered", "mirror", m.breaker.Name())
		}
		return
	}

	_, change := m.breaker.RecordFailure()
	if f.logger == nil {
		return
	}
	if change.Opened {
		f.logger.ErrorContext(ctx, "event mirror circuit opened",
			"mirror", m.breaker.Name(),
			"error", err,
		)
		return
	}
	f.logger.WarnContext(ctx, "event mirror append failed",
		"action", event.Action,
		"mirror", m.breaker.Name(),
		"error", err,
	)
}
