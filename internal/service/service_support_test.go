package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/gateway"
	"subscription-billing-be/internal/repository/memory"
	"subscription-billing-be/pkg/events"

	"github.com/google/uuid"
)

// nopLogger satisfies logger.ILogger for tests.
type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeGateway scripts provider responses and records every call.
type fakeGateway struct {
	mu sync.Mutex

	scheduleResult *gateway.BillingScheduleResult
	scheduleErr    error
	chargeResult   *gateway.BillingResult
	chargeErr      error
	// scheduleFn and chargeFn override the scripted results when set, for
	// per-call scripting.
	scheduleFn func(req gateway.BillingScheduleRequest) (*gateway.BillingScheduleResult, error)
	chargeFn   func(req gateway.ChargeRequest) (*gateway.BillingResult, error)

	ScheduleCalls []gateway.BillingScheduleRequest
	UpdateCalls   []gateway.BillingUpdateRequest
	ChargeCalls   []gateway.ChargeRequest
	DisabledIds   []uuid.UUID
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		scheduleResult: &gateway.BillingScheduleResult{Success: true, ScheduleId: "sched-1"},
		chargeResult:   &gateway.BillingResult{Success: true, TransactionId: "txn-1"},
	}
}

func (g *fakeGateway) ScheduleBilling(ctx context.Context, req gateway.BillingScheduleRequest) (*gateway.BillingScheduleResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ScheduleCalls = append(g.ScheduleCalls, req)
	if g.scheduleFn != nil {
		return g.scheduleFn(req)
	}
	if g.scheduleErr != nil {
		return nil, g.scheduleErr
	}
	res := *g.scheduleResult
	return &res, nil
}

func (g *fakeGateway) UpdateBilling(ctx context.Context, req gateway.BillingUpdateRequest) (*gateway.BillingScheduleResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.UpdateCalls = append(g.UpdateCalls, req)
	return &gateway.BillingScheduleResult{Success: true}, nil
}

func (g *fakeGateway) ExecuteCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.BillingResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ChargeCalls = append(g.ChargeCalls, req)
	if g.chargeFn != nil {
		return g.chargeFn(req)
	}
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	res := *g.chargeResult
	res.ChargedAmount = req.Amount
	return &res, nil
}

func (g *fakeGateway) DisableBilling(ctx context.Context, subscriptionId uuid.UUID, gatewayScheduleId string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DisabledIds = append(g.DisabledIds, subscriptionId)
	return nil
}

// fakePublisher records events in publish order.
type fakePublisher struct {
	mu     sync.Mutex
	failed bool

	Events []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed {
		return errors.New("broker unavailable")
	}
	p.Events = append(p.Events, event)
	return nil
}

func (p *fakePublisher) PublishAll(ctx context.Context, evts []events.Event) error {
	for _, evt := range evts {
		if err := p.Publish(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakePublisher) PublishWithRetry(ctx context.Context, event events.Event, maxRetries int) error {
	return p.Publish(ctx, event)
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, evt := range p.Events {
		out = append(out, evt.EventType())
	}
	return out
}

func (p *fakePublisher) typesFor(aggregateId string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, evt := range p.Events {
		if evt.AggregateId() == aggregateId {
			out = append(out, evt.EventType())
		}
	}
	return out
}

func seedPlan(factory *memory.Factory, externalId string, monthlyAmount float64) *entity.Plan {
	plan := &entity.Plan{
		Id:            uuid.New(),
		ExternalId:    externalId,
		Name:          "Plan " + externalId,
		MonthlyAmount: monthlyAmount,
		BillingCycle:  entity.BillingCycleMonthly,
		IsActive:      true,
	}
	factory.Uow.Plans.Create(context.Background(), plan)
	return plan
}

func seedActiveSubscription(factory *memory.Factory, planId string, monthlyAmount float64, cycle entity.BillingCycle, nextBillingDate time.Time) *entity.Subscription {
	sub := entity.NewSubscription(uuid.New(), "customer@example.com", planId, cycle, monthlyAmount, nextBillingDate.AddDate(0, -cycle.Months(), 0), nil, "tok-visa")
	sub.Status = entity.SubscriptionStatusActive
	sub.GatewayScheduleId = "sched-" + sub.Id.String()[:8]
	factory.Uow.Subscriptions.Seed(sub)
	return sub
}
