package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "BILLING_SUCCEEDED").
	EventType() string

	// AggregateId returns the identifier used as the routing/ordering key, so
	// every event for one subscription is delivered in order.
	AggregateId() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher is the port lifecycle code emits events through. Publishing is a
// best-effort notification: implementations log and count failures, callers
// never roll back business state over them.
type Publisher interface {
	Publish(ctx context.Context, event Event) error

	// PublishAll publishes each event independently; one failure does not
	// block the rest. The returned error aggregates the individual failures.
	PublishAll(ctx context.Context, events []Event) error

	PublishWithRetry(ctx context.Context, event Event, maxRetries int) error
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Aggregate  string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) AggregateId() string {
	return e.Aggregate
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
