package entity

import "time"

// OutboxEvent is an envelope stored alongside its product row, waiting for
// the relay to publish it.
type OutboxEvent struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	AggregateID int64      `json:"aggregate_id"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
}
