package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Handler delivers one outbox entry to its downstream targets. A returned
// error leaves the entry pending so the next poll retries it.
type Handler interface {
	Handle(ctx context.Context, entry Entry) error
}

// Dispatcher polls the outbox and pushes pending entries through the handler.
type Dispatcher struct {
	store     Store
	handler   Handler
	logger    zerolog.Logger
	batchSize int32
	interval  time.Duration
}

func NewDispatcher(store Store, handler Handler, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Dispatcher) WithBatchSize(size int32) *Dispatcher {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce drains at most one batch. Exported so workers and tests can drive
// the loop themselves.
func (d *Dispatcher) RunOnce(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("outbox fetch failed")
		return
	}

	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.logger.Error().Err(err).
				Str("event_id", entry.ID.String()).
				Str("event_type", entry.Type).
				Msg("outbox delivery failed, will retry")
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, entry.ID)
		if err != nil {
			d.logger.Error().Err(err).Str("event_id", entry.ID.String()).Msg("mark delivered failed")
			continue
		}
		if !ok {
			// another dispatcher instance got there first
			continue
		}
		d.logger.Debug().
			Str("event_id", entry.ID.String()).
			Str("event_type", entry.Type).
			Msg("outbox entry delivered")
	}
}
