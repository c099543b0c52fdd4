package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"subscription-billing-be/internal/constant"
	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/repository/memory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu sync.Mutex

	failedNotices    []string
	cancelledNotices []string
	done             chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{done: make(chan struct{}, 10)}
}

func (m *recordingMailer) SendPaymentFailed(toEmail, planName string, amount float64, attempt, maxAttempts int, graceDeadline *time.Time) error {
	m.mu.Lock()
	m.failedNotices = append(m.failedNotices, toEmail)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *recordingMailer) SendSubscriptionCancelled(toEmail, planName, reason string) error {
	m.mu.Lock()
	m.cancelledNotices = append(m.cancelledNotices, toEmail)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func TestConsumerService_SendsDunningEmails(t *testing.T) {
	factory := memory.NewFactory()
	seedPlan(factory, "pro", 29.90)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	mailerFake := newRecordingMailer()
	consumer := NewConsumerService(pubSub, constant.DunningTopicName, factory, mailerFake)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	failed, _ := json.Marshal(dto.DunningMessage{
		SubscriptionId: uuid.New(),
		CustomerEmail:  "first@example.com",
		PlanId:         "pro",
		Kind:           dto.DunningKindPaymentFailed,
		Amount:         29.90,
		Attempt:        1,
		MaxAttempts:    3,
	})
	cancelled, _ := json.Marshal(dto.DunningMessage{
		SubscriptionId: uuid.New(),
		CustomerEmail:  "second@example.com",
		PlanId:         "pro",
		Kind:           dto.DunningKindCancelled,
		CancelReason:   constant.CancelReasonGraceExpired,
	})

	require.NoError(t, pubSub.Publish(constant.DunningTopicName, message.NewMessage(watermill.NewUUID(), failed)))
	require.NoError(t, pubSub.Publish(constant.DunningTopicName, message.NewMessage(watermill.NewUUID(), cancelled)))

	for i := 0; i < 2; i++ {
		select {
		case <-mailerFake.done:
		case <-ctx.Done():
			t.Fatal("expected two dunning emails")
		}
	}

	mailerFake.mu.Lock()
	defer mailerFake.mu.Unlock()
	assert.Equal(t, []string{"first@example.com"}, mailerFake.failedNotices)
	assert.Equal(t, []string{"second@example.com"}, mailerFake.cancelledNotices)
}
