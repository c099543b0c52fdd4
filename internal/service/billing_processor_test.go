package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"subscription-billing-be/internal/constant"
	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/gateway"
	"subscription-billing-be/internal/repository/memory"
	"subscription-billing-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(factory *memory.Factory, gw *fakeGateway, pub *fakePublisher) IBillingProcessor {
	return NewBillingProcessor(factory, gw, pub, nil, nopLogger{}, 3, 7)
}

func TestProcessSubscriptionBilling_Success(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	pub := &fakePublisher{}
	processor := newProcessor(factory, gw, pub)

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)

	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)

	assert.True(t, outcome.Processed)
	assert.True(t, outcome.Success)
	assert.Equal(t, 29.90, outcome.Amount)
	assert.Equal(t, "txn-1", outcome.TransactionId)
	assert.Equal(t, entity.SubscriptionStatusActive, outcome.NewStatus)

	stored, ok := factory.Uow.Subscriptions.Get(sub.Id)
	require.True(t, ok)
	assert.Equal(t, entity.SubscriptionStatusActive, stored.Status)
	assert.Equal(t, now.AddDate(0, 1, 0), stored.NextBillingDate)
	assert.Equal(t, 0, stored.FailedPaymentAttempts)
	assert.Nil(t, stored.GracePeriodEnd)

	attempts, err := factory.Uow.BillingAttempts.FindAllBySubscription(context.Background(), sub.Id)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, entity.BillingAttemptStatusSucceeded, attempts[0].Status)
	assert.False(t, attempts[0].IsRetry)
	assert.Equal(t, 29.90, attempts[0].Amount)

	assert.Equal(t, []string{events.TypeBillingSucceeded}, pub.eventTypes())
}

func TestProcessSubscriptionBilling_QuarterlyChargesThreeMonths(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	processor := newProcessor(factory, gw, &fakePublisher{})

	now := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 10.00, entity.BillingCycleQuarterly, now)

	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)

	assert.Equal(t, 30.00, outcome.Amount)
	require.Len(t, gw.ChargeCalls, 1)
	assert.Equal(t, 30.00, gw.ChargeCalls[0].Amount)

	stored, _ := factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, now.AddDate(0, 3, 0), stored.NextBillingDate)
}

func TestProcessSubscriptionBilling_FirstDeclineOpensGrace(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	gw.chargeResult = &gateway.BillingResult{Success: false, Message: "card declined", ErrorCode: "DECLINED"}
	pub := &fakePublisher{}
	processor := newProcessor(factory, gw, pub)

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)

	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)

	assert.True(t, outcome.Processed)
	assert.False(t, outcome.Success)
	assert.Equal(t, entity.SubscriptionStatusPastDue, outcome.NewStatus)

	stored, _ := factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, entity.SubscriptionStatusPastDue, stored.Status)
	assert.Equal(t, 1, stored.FailedPaymentAttempts)
	require.NotNil(t, stored.GracePeriodEnd)
	assert.Equal(t, now.AddDate(0, 0, 7), *stored.GracePeriodEnd)
	// Billing date stands still so the retry job still sees the charge as due.
	assert.Equal(t, now, stored.NextBillingDate)

	attempts, _ := factory.Uow.BillingAttempts.FindAllBySubscription(context.Background(), sub.Id)
	require.Len(t, attempts, 1)
	assert.Equal(t, entity.BillingAttemptStatusFailed, attempts[0].Status)
	assert.Equal(t, "DECLINED", attempts[0].ErrorCode)

	assert.Equal(t, []string{events.TypeBillingFailed, events.TypeSubscriptionPastDue}, pub.eventTypes())
}

func TestProcessSubscriptionBilling_ThirdFailureCancels(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	gw.chargeResult = &gateway.BillingResult{Success: false, Message: "card declined", ErrorCode: "DECLINED"}
	pub := &fakePublisher{}
	processor := newProcessor(factory, gw, pub)

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)

	// First failure opens the grace window.
	_, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)
	afterFirst, _ := factory.Uow.Subscriptions.Get(sub.Id)
	firstGrace := *afterFirst.GracePeriodEnd

	// Second failure counts up but does not extend the window.
	retryAt := now.Add(6 * time.Hour)
	_, err = processor.ProcessSubscriptionBilling(context.Background(), sub.Id, retryAt)
	require.NoError(t, err)
	afterSecond, _ := factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, 2, afterSecond.FailedPaymentAttempts)
	assert.Equal(t, entity.SubscriptionStatusPastDue, afterSecond.Status)
	assert.Equal(t, firstGrace, *afterSecond.GracePeriodEnd)

	// Third failure exhausts the attempts and cancels.
	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, retryAt.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusCancelled, outcome.NewStatus)

	stored, _ := factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, entity.SubscriptionStatusCancelled, stored.Status)
	assert.Nil(t, stored.GracePeriodEnd)

	attempts, _ := factory.Uow.BillingAttempts.FindAllBySubscription(context.Background(), sub.Id)
	assert.Len(t, attempts, 3)
	assert.True(t, attempts[1].IsRetry)
	assert.True(t, attempts[2].IsRetry)

	// Provider schedule is torn down once the subscription is dead.
	assert.Equal(t, []uuid.UUID{sub.Id}, gw.DisabledIds)

	types := pub.eventTypes()
	assert.Equal(t, events.TypeSubscriptionCancelled, types[len(types)-1])
}

func TestProcessSubscriptionBilling_GatewayUnreachableCountsAsFailure(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	gw.chargeErr = errors.New("connection refused")
	processor := newProcessor(factory, gw, &fakePublisher{})

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)

	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)
	assert.True(t, outcome.Processed)
	assert.False(t, outcome.Success)

	attempts, _ := factory.Uow.BillingAttempts.FindAllBySubscription(context.Background(), sub.Id)
	require.Len(t, attempts, 1)
	assert.Equal(t, "GATEWAY_UNREACHABLE", attempts[0].ErrorCode)
}

func TestProcessSubscriptionBilling_SkipsWhenNotDue(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	processor := newProcessor(factory, gw, &fakePublisher{})

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 0, 10))

	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)
	assert.False(t, outcome.Processed)
	assert.Empty(t, gw.ChargeCalls)
}

func TestProcessSubscriptionBilling_SkipsPaused(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	processor := newProcessor(factory, gw, &fakePublisher{})

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)
	sub.Status = entity.SubscriptionStatusPaused
	factory.Uow.Subscriptions.Seed(sub)

	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)
	assert.False(t, outcome.Processed)
	assert.Empty(t, gw.ChargeCalls)
}

func TestProcessSubscriptionBilling_LostVersionRaceIsNoOp(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	pub := &fakePublisher{}
	processor := newProcessor(factory, gw, pub)

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)

	// Another worker commits between our read and our write.
	gw.chargeFn = func(req gateway.ChargeRequest) (*gateway.BillingResult, error) {
		racing, _ := factory.Uow.Subscriptions.Get(sub.Id)
		racing.Version++
		factory.Uow.Subscriptions.Seed(racing)
		return &gateway.BillingResult{Success: true, TransactionId: "txn-racer"}, nil
	}

	outcome, err := processor.ProcessSubscriptionBilling(context.Background(), sub.Id, now)
	require.NoError(t, err)
	assert.False(t, outcome.Processed)
	assert.Empty(t, pub.Events)

	attempts, _ := factory.Uow.BillingAttempts.FindAllBySubscription(context.Background(), sub.Id)
	assert.Empty(t, attempts)
}

func TestProcessSubscriptionBilling_UnknownSubscription(t *testing.T) {
	factory := memory.NewFactory()
	processor := newProcessor(factory, newFakeGateway(), &fakePublisher{})

	_, err := processor.ProcessSubscriptionBilling(context.Background(), uuid.New(), time.Now().UTC())
	assert.ErrorIs(t, err, entity.ErrSubscriptionNotFound)
}

func TestProcessSubscriptionBilling_FailureEnqueuesDunning(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	gw.chargeResult = &gateway.BillingResult{Success: false, Message: "card declined", ErrorCode: "DECLINED"}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, constant.DunningTopicName)
	require.NoError(t, err)

	processor := NewBillingProcessor(factory, gw, &fakePublisher{}, pubSub, nopLogger{}, 3, 7)

	now := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)

	_, err = processor.ProcessSubscriptionBilling(ctx, sub.Id, now)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		var payload dto.DunningMessage
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, dto.DunningKindPaymentFailed, payload.Kind)
		assert.Equal(t, sub.Id, payload.SubscriptionId)
		assert.Equal(t, 1, payload.Attempt)
		assert.Equal(t, 3, payload.MaxAttempts)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("expected a dunning message")
	}
}
