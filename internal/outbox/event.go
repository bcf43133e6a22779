package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event types written by the checkout path.
const (
	TypeOrderCommitted = "order.committed"
)

// Event is a row of the transactional outbox. It is written in the same
// transaction as the change it announces and published later by the Relay.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RetryCount    int
	LastError     *string
}
