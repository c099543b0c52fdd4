package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/gateway"
	"subscription-billing-be/internal/repository/memory"
	"subscription-billing-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubscriptionService(factory *memory.Factory, gw *fakeGateway, pub *fakePublisher) ISubscriptionService {
	return NewSubscriptionService(factory, gw, pub, nopLogger{}, 10)
}

func TestCreateSubscription_HappyPath(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	pub := &fakePublisher{}
	svc := newSubscriptionService(factory, gw, pub)
	seedPlan(factory, "pro", 29.90)

	customerId := uuid.New()
	start := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	res, err := svc.CreateSubscription(context.Background(), customerId, "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		StartDate:          &start,
		PaymentMethodToken: "tok-visa",
	})
	require.NoError(t, err)

	assert.Equal(t, "active", res.Status)
	assert.Equal(t, 29.90, res.MonthlyAmount)
	assert.Equal(t, 29.90, res.ChargeAmount)
	assert.Equal(t, start.AddDate(0, 1, 0), res.NextBillingDate)
	assert.Equal(t, "Plan pro", res.PlanName)

	stored, ok := factory.Uow.Subscriptions.Get(res.Id)
	require.True(t, ok)
	assert.Equal(t, entity.SubscriptionStatusActive, stored.Status)
	assert.Equal(t, "sched-1", stored.GatewayScheduleId)

	require.Len(t, gw.ScheduleCalls, 1)
	assert.Equal(t, 29.90, gw.ScheduleCalls[0].Amount)
	assert.Equal(t, start.AddDate(0, 1, 0), gw.ScheduleCalls[0].FirstBillingDate)

	assert.Equal(t, []string{events.TypeSubscriptionCreated, events.TypeSubscriptionActivated}, pub.eventTypes())
}

func TestCreateSubscription_YearlyChargeAmount(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	svc := newSubscriptionService(factory, gw, &fakePublisher{})
	seedPlan(factory, "pro", 10.00)

	res, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "yearly",
		PaymentMethodToken: "tok-visa",
	})
	require.NoError(t, err)
	assert.Equal(t, 120.00, res.ChargeAmount)
}

func TestCreateSubscription_ScheduleRejectedCompensates(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	gw.scheduleResult = &gateway.BillingScheduleResult{Success: false, Message: "card declined"}
	pub := &fakePublisher{}
	svc := newSubscriptionService(factory, gw, pub)
	seedPlan(factory, "pro", 29.90)

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-bad",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card declined")

	// The pending row must not linger; compensation cancels it.
	subs, _ := factory.Uow.Subscriptions.FindAll(context.Background())
	require.Len(t, subs, 1)
	assert.Equal(t, entity.SubscriptionStatusCancelled, subs[0].Status)

	types := pub.eventTypes()
	assert.Equal(t, []string{events.TypeSubscriptionCreated, events.TypeSubscriptionCancelled}, types)
}

func TestCreateSubscription_GatewayErrorCompensates(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	gw.scheduleErr = errors.New("dial tcp: connection refused")
	pub := &fakePublisher{}
	svc := newSubscriptionService(factory, gw, pub)
	seedPlan(factory, "pro", 29.90)

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-visa",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unreachable")

	subs, _ := factory.Uow.Subscriptions.FindAll(context.Background())
	require.Len(t, subs, 1)
	assert.Equal(t, entity.SubscriptionStatusCancelled, subs[0].Status)
	assert.Equal(t, []string{events.TypeSubscriptionCreated, events.TypeSubscriptionCancelled}, pub.eventTypes())
}

func TestCreateSubscription_ActivationConflictCompensates(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	pub := &fakePublisher{}
	svc := newSubscriptionService(factory, gw, pub)
	seedPlan(factory, "pro", 29.90)

	// A concurrent writer touches the row while the provider call is in
	// flight, so the activation update loses the version race.
	gw.scheduleFn = func(req gateway.BillingScheduleRequest) (*gateway.BillingScheduleResult, error) {
		stored, ok := factory.Uow.Subscriptions.Get(req.SubscriptionId)
		require.True(t, ok)
		require.NoError(t, factory.Uow.Subscriptions.Update(context.Background(), stored))
		return &gateway.BillingScheduleResult{Success: true, ScheduleId: "sched-1"}, nil
	}

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-visa",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activation failed")

	// The row must not stay pending with a live provider schedule.
	subs, _ := factory.Uow.Subscriptions.FindAll(context.Background())
	require.Len(t, subs, 1)
	assert.Equal(t, entity.SubscriptionStatusCancelled, subs[0].Status)
	assert.Equal(t, []uuid.UUID{subs[0].Id}, gw.DisabledIds)
	assert.Equal(t, []string{events.TypeSubscriptionCreated, events.TypeSubscriptionCancelled}, pub.eventTypes())
}

func TestCreateSubscription_PanicFallsBackToCancelled(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	pub := &fakePublisher{}
	svc := newSubscriptionService(factory, gw, pub)
	seedPlan(factory, "pro", 29.90)

	gw.scheduleFn = func(req gateway.BillingScheduleRequest) (*gateway.BillingScheduleResult, error) {
		panic("provider client bug")
	}

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-visa",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider client bug")

	subs, _ := factory.Uow.Subscriptions.FindAll(context.Background())
	require.Len(t, subs, 1)
	assert.Equal(t, entity.SubscriptionStatusCancelled, subs[0].Status)
	// No schedule was created, so there is nothing to tear down.
	assert.Empty(t, gw.DisabledIds)
	assert.Equal(t, []string{events.TypeSubscriptionCreated, events.TypeSubscriptionCancelled}, pub.eventTypes())
}

func TestCreateSubscription_UnknownPlan(t *testing.T) {
	factory := memory.NewFactory()
	svc := newSubscriptionService(factory, newFakeGateway(), &fakePublisher{})

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "ghost",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-visa",
	})
	assert.ErrorIs(t, err, entity.ErrPlanNotFound)
}

func TestCreateSubscription_RejectsDuplicatePlan(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	svc := newSubscriptionService(factory, gw, &fakePublisher{})
	seedPlan(factory, "pro", 29.90)

	customerId := uuid.New()
	req := &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-visa",
	}

	_, err := svc.CreateSubscription(context.Background(), customerId, "customer@example.com", req)
	require.NoError(t, err)

	_, err = svc.CreateSubscription(context.Background(), customerId, "customer@example.com", req)
	assert.ErrorIs(t, err, entity.ErrDuplicateSubscription)
}

func TestCreateSubscription_EnforcesActiveLimit(t *testing.T) {
	factory := memory.NewFactory()
	svc := NewSubscriptionService(factory, newFakeGateway(), &fakePublisher{}, nopLogger{}, 1)
	seedPlan(factory, "pro", 29.90)
	seedPlan(factory, "team", 99.00)

	customerId := uuid.New()
	_, err := svc.CreateSubscription(context.Background(), customerId, "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-visa",
	})
	require.NoError(t, err)

	_, err = svc.CreateSubscription(context.Background(), customerId, "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "team",
		BillingCycle:       "monthly",
		PaymentMethodToken: "tok-visa",
	})
	assert.ErrorIs(t, err, entity.ErrSubscriptionLimitReached)
}

func TestCreateSubscription_ValidatesRequest(t *testing.T) {
	factory := memory.NewFactory()
	svc := newSubscriptionService(factory, newFakeGateway(), &fakePublisher{})

	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:       "pro",
		BillingCycle: "weekly",
	})
	assert.Error(t, err)
}

func TestCreateSubscription_EndDateBeforeStartRejected(t *testing.T) {
	factory := memory.NewFactory()
	svc := newSubscriptionService(factory, newFakeGateway(), &fakePublisher{})
	seedPlan(factory, "pro", 29.90)

	start := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err := svc.CreateSubscription(context.Background(), uuid.New(), "customer@example.com", &dto.CreateSubscriptionRequest{
		PlanId:             "pro",
		BillingCycle:       "monthly",
		StartDate:          &start,
		EndDate:            &end,
		PaymentMethodToken: "tok-visa",
	})
	assert.Error(t, err)
}

func TestPauseAndResumeSubscription(t *testing.T) {
	factory := memory.NewFactory()
	pub := &fakePublisher{}
	svc := newSubscriptionService(factory, newFakeGateway(), pub)
	seedPlan(factory, "pro", 29.90)

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 1, 0))

	require.NoError(t, svc.PauseSubscription(context.Background(), sub.CustomerId, sub.Id))
	stored, _ := factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, entity.SubscriptionStatusPaused, stored.Status)

	require.NoError(t, svc.ResumeSubscription(context.Background(), sub.CustomerId, sub.Id))
	stored, _ = factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, entity.SubscriptionStatusActive, stored.Status)

	assert.Equal(t, []string{events.TypeSubscriptionPaused, events.TypeSubscriptionResumed}, pub.eventTypes())
}

func TestPauseSubscription_RejectsWrongState(t *testing.T) {
	factory := memory.NewFactory()
	svc := newSubscriptionService(factory, newFakeGateway(), &fakePublisher{})

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)
	sub.Status = entity.SubscriptionStatusPastDue
	factory.Uow.Subscriptions.Seed(sub)

	err := svc.PauseSubscription(context.Background(), sub.CustomerId, sub.Id)
	assert.True(t, entity.IsInvalidTransition(err))
}

func TestCancelSubscription(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	pub := &fakePublisher{}
	svc := newSubscriptionService(factory, gw, pub)

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 1, 0))

	require.NoError(t, svc.CancelSubscription(context.Background(), sub.CustomerId, sub.Id))

	stored, _ := factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, entity.SubscriptionStatusCancelled, stored.Status)
	assert.Equal(t, []uuid.UUID{sub.Id}, gw.DisabledIds)
	assert.Equal(t, []string{events.TypeSubscriptionCancelled}, pub.eventTypes())

	// Cancelling again is idempotent: no second event, no second teardown.
	require.NoError(t, svc.CancelSubscription(context.Background(), sub.CustomerId, sub.Id))
	assert.Len(t, gw.DisabledIds, 1)
	assert.Len(t, pub.Events, 1)
}

func TestUpdatePaymentMethod(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	svc := newSubscriptionService(factory, gw, &fakePublisher{})

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 1, 0))

	err := svc.UpdatePaymentMethod(context.Background(), sub.CustomerId, sub.Id, &dto.UpdatePaymentMethodRequest{
		PaymentMethodToken: "tok-mastercard",
	})
	require.NoError(t, err)

	stored, _ := factory.Uow.Subscriptions.Get(sub.Id)
	assert.Equal(t, "tok-mastercard", stored.PaymentMethodToken)

	require.Len(t, gw.UpdateCalls, 1)
	assert.Equal(t, sub.GatewayScheduleId, gw.UpdateCalls[0].GatewayScheduleId)
	require.NotNil(t, gw.UpdateCalls[0].NewPaymentMethodToken)
	assert.Equal(t, "tok-mastercard", *gw.UpdateCalls[0].NewPaymentMethodToken)
}

func TestUpdatePaymentMethod_RejectsCancelled(t *testing.T) {
	factory := memory.NewFactory()
	gw := newFakeGateway()
	svc := newSubscriptionService(factory, gw, &fakePublisher{})

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 1, 0))
	require.NoError(t, svc.CancelSubscription(context.Background(), sub.CustomerId, sub.Id))

	err := svc.UpdatePaymentMethod(context.Background(), sub.CustomerId, sub.Id, &dto.UpdatePaymentMethodRequest{
		PaymentMethodToken: "tok-mastercard",
	})
	require.Error(t, err)
	assert.True(t, entity.IsInvalidTransition(err))
	assert.Empty(t, gw.UpdateCalls)
}

func TestSubscriptionOwnershipEnforced(t *testing.T) {
	factory := memory.NewFactory()
	svc := newSubscriptionService(factory, newFakeGateway(), &fakePublisher{})

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 1, 0))

	_, err := svc.GetSubscription(context.Background(), uuid.New(), sub.Id)
	assert.ErrorIs(t, err, entity.ErrSubscriptionNotFound)

	err = svc.CancelSubscription(context.Background(), uuid.New(), sub.Id)
	assert.ErrorIs(t, err, entity.ErrSubscriptionNotFound)
}

func TestGetBillingHistory(t *testing.T) {
	factory := memory.NewFactory()
	svc := newSubscriptionService(factory, newFakeGateway(), &fakePublisher{})

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now)
	factory.Uow.BillingAttempts.Create(context.Background(), &entity.BillingAttempt{
		Id:             uuid.New(),
		SubscriptionId: sub.Id,
		Amount:         29.90,
		Status:         entity.BillingAttemptStatusSucceeded,
		TransactionId:  "txn-1",
		AttemptedAt:    now,
	})

	history, err := svc.GetBillingHistory(context.Background(), sub.CustomerId, sub.Id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "txn-1", history[0].TransactionId)

	_, err = svc.GetBillingHistory(context.Background(), uuid.New(), sub.Id)
	assert.ErrorIs(t, err, entity.ErrSubscriptionNotFound)
}

func TestListSubscriptions(t *testing.T) {
	factory := memory.NewFactory()
	svc := newSubscriptionService(factory, newFakeGateway(), &fakePublisher{})
	seedPlan(factory, "pro", 29.90)

	now := time.Now().UTC()
	sub := seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 1, 0))
	seedActiveSubscription(factory, "pro", 29.90, entity.BillingCycleMonthly, now.AddDate(0, 1, 0))

	mine, err := svc.ListSubscriptions(context.Background(), sub.CustomerId)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, sub.Id, mine[0].Id)
	assert.Equal(t, "Plan pro", mine[0].PlanName)
}
