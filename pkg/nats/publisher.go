package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"subscription-billing-be/pkg/events"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const streamName = "EVENTS"

// envelope is the wire shape of an event on the bus.
type envelope struct {
	Type        string                 `json:"type"`
	AggregateId string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// Publisher handles sending events to the NATS bus.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// Ensure the "EVENTS" stream exists
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		log.Printf("Warn: Failed to ensure stream %q: %v", streamName, err)
		// Don't fail hard here, maybe it already exists or NATS isn't ready
	}

	return &Publisher{nc: nc, js: js}, nil
}

var _ events.Publisher = (*Publisher)(nil)

// subjectFor keys the subject by event type and aggregate id. NATS preserves
// publish order per subject within the stream, so one subscription's events
// arrive in order.
func subjectFor(event events.Event) string {
	return fmt.Sprintf("events.%s.%s", event.EventType(), event.AggregateId())
}

// Publish sends one event to NATS.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(envelope{
		Type:        event.EventType(),
		AggregateId: event.AggregateId(),
		OccurredAt:  event.Timestamp(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := subjectFor(event)
	msgId := fmt.Sprintf("%s-%s-%d", event.EventType(), event.AggregateId(), event.Timestamp().UnixNano())

	// The message id lets JetStream drop duplicates when a retry races a
	// slow but ultimately successful first publish.
	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgId))
	if err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}

	return nil
}

// PublishAll sends each event independently.
func (p *Publisher) PublishAll(ctx context.Context, evts []events.Event) error {
	var errs []error
	for _, event := range evts {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishWithRetry retries transient publish failures with exponential
// backoff before giving up.
func (p *Publisher) PublishWithRetry(ctx context.Context, event events.Event, maxRetries int) error {
	operation := func() (struct{}, error) {
		return struct{}{}, p.Publish(ctx, event)
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(maxRetries)),
	)
	return err
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
