package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

type Publisher interface {
	Dispatch(ctx context.Context, event Event) error
}

// Relay polls the outbox and publishes pending events. Events are delivered
// at least once; consumers dedupe on the order id.
type Relay struct {
	log       *slog.Logger
	store     Store
	publish   Publisher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(log *slog.Logger, store Store, publish Publisher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		publish:   publish,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil {
				r.log.Error("relay flush error", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many events were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		if err := r.publish.Dispatch(ctx, e); err != nil {
			if markErr := r.store.MarkFailed(ctx, e.ID, err.Error()); markErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", markErr)
			}
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
