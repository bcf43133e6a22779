package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chefkeenan/Lume/internal/outbox"
)

// maxDeliveryAttempts bounds how often a failed event is retried.
const maxDeliveryAttempts = 10

// OutboxStore writes events inside the caller's transaction and leases
// them to relays.
type OutboxStore struct {
	conn
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{conn: conn{pool: pool}}
}

func (s *OutboxStore) Enqueue(ctx context.Context, ev outbox.Event) error {
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	const stmt = `
INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	if _, err := s.exec(ctx, stmt, ev.AggregateType, ev.AggregateID, ev.Type,
		string(ev.Payload), headers, ev.Traceparent); err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.Type, err)
	}
	return nil
}

// LockBatch leases up to batchSize deliverable events to relayID. Pending
// events, failed events under the retry cap and expired leases qualify.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	const stmt = `
UPDATE outbox o
SET status = 'in_progress', relay_id = $1, lease_until = NOW() + make_interval(secs => $3)
WHERE o.id IN (
	SELECT id FROM outbox
	WHERE status = 'pending'
		OR (status = 'failed' AND retry_count < $4)
		OR (status = 'in_progress' AND lease_until < NOW())
	ORDER BY id
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
RETURNING o.id, o.aggregate_type, o.aggregate_id, o.type, o.payload, o.headers, o.traceparent,
	o.created_at, o.retry_count`
	rows, err := s.query(ctx, stmt, relayID, batchSize, lease.Seconds(), maxDeliveryAttempts)
	if err != nil {
		return nil, fmt.Errorf("lease outbox: %w", err)
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var (
			ev      outbox.Event
			payload string
			headers map[string]string
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &payload, &headers,
			&ev.Traceparent, &ev.CreatedAt, &ev.RetryCount); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		ev.Payload = []byte(payload)
		ev.Headers = headers
		ev.Status = outbox.StatusInProgress
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate outbox: %w", rows.Err())
	}
	// RETURNING does not keep the subquery order.
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.exec(ctx, `UPDATE outbox SET status = 'sent', lease_until = NULL WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	const stmt = `
UPDATE outbox
SET status = 'failed', last_error = $2, retry_count = retry_count + 1, lease_until = NULL
WHERE id = $1`
	if _, err := s.exec(ctx, stmt, id, errMsg); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}
