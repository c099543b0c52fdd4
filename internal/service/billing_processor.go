// FILE: internal/service/billing_processor.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"subscription-billing-be/internal/constant"
	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/gateway"
	"subscription-billing-be/internal/pkg/logger"
	"subscription-billing-be/internal/repository/specification"
	"subscription-billing-be/internal/repository/unitofwork"
	"subscription-billing-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// BillingOutcome describes what one processing pass did to a subscription.
// Processed=false means the pass was a no-op (not due, wrong state, or
// another worker won the version race) and nothing was charged or published.
type BillingOutcome struct {
	SubscriptionId uuid.UUID
	Processed      bool
	Success        bool
	Amount         float64
	TransactionId  string
	NewStatus      entity.SubscriptionStatus
	Reason         string
}

type IBillingProcessor interface {
	// ProcessSubscriptionBilling charges one due subscription and applies the
	// resulting lifecycle transition. The state change and the attempt audit
	// row commit in one transaction; events and notifications go out after
	// commit and are best effort.
	ProcessSubscriptionBilling(ctx context.Context, subscriptionId uuid.UUID, asOf time.Time) (*BillingOutcome, error)
}

type billingProcessor struct {
	uowFactory     unitofwork.RepositoryFactory
	billingGateway gateway.BillingGateway
	eventPublisher events.Publisher
	dunning        message.Publisher
	log            logger.ILogger
	maxAttempts    int
	graceDays      int
}

func NewBillingProcessor(
	uowFactory unitofwork.RepositoryFactory,
	billingGateway gateway.BillingGateway,
	eventPublisher events.Publisher,
	dunning message.Publisher,
	log logger.ILogger,
	maxAttempts int,
	graceDays int,
) IBillingProcessor {
	return &billingProcessor{
		uowFactory:     uowFactory,
		billingGateway: billingGateway,
		eventPublisher: eventPublisher,
		dunning:        dunning,
		log:            log,
		maxAttempts:    maxAttempts,
		graceDays:      graceDays,
	}
}

func (p *billingProcessor) ProcessSubscriptionBilling(ctx context.Context, subscriptionId uuid.UUID, asOf time.Time) (*BillingOutcome, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)

	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.ByID{ID: subscriptionId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, entity.ErrSubscriptionNotFound
	}

	outcome := &BillingOutcome{SubscriptionId: subscriptionId, NewStatus: sub.Status}

	// Only active and past-due subscriptions are billable. Paused ones are
	// left alone; their billing date stands still until resume.
	if sub.Status != entity.SubscriptionStatusActive && sub.Status != entity.SubscriptionStatusPastDue {
		outcome.Reason = "not billable in status " + string(sub.Status)
		return outcome, nil
	}

	// Re-check dueness against the row we just read. If a concurrent worker
	// already charged this subscription, its billing date has moved forward
	// and this pass degrades to a no-op.
	if sub.NextBillingDate.After(asOf) {
		outcome.Reason = "not due"
		return outcome, nil
	}

	isRetry := sub.FailedPaymentAttempts > 0
	wasPastDue := sub.Status == entity.SubscriptionStatusPastDue
	amount := sub.ChargeAmount()

	result, chargeErr := p.billingGateway.ExecuteCharge(ctx, gateway.ChargeRequest{
		SubscriptionId:     sub.Id,
		CustomerId:         sub.CustomerId,
		Amount:             amount,
		PaymentMethodToken: sub.PaymentMethodToken,
		IsRetry:            isRetry,
	})
	if chargeErr != nil {
		// Provider unreachable counts as a failed attempt like a decline.
		result = &gateway.BillingResult{
			Success:   false,
			Message:   chargeErr.Error(),
			ErrorCode: "GATEWAY_UNREACHABLE",
		}
	}

	attempt := &entity.BillingAttempt{
		Id:             uuid.New(),
		SubscriptionId: sub.Id,
		Amount:         amount,
		IsRetry:        isRetry,
		TransactionId:  result.TransactionId,
		ErrorCode:      result.ErrorCode,
		ErrorMessage:   result.Message,
		GatewayPayload: result.RawResponse,
		AttemptedAt:    asOf,
	}

	exhausted := false
	if result.Success {
		attempt.Status = entity.BillingAttemptStatusSucceeded
		if err := sub.RecordSuccessfulCharge(asOf); err != nil {
			return nil, err
		}
	} else {
		attempt.Status = entity.BillingAttemptStatusFailed
		exhausted, err = sub.RecordFailedCharge(asOf, p.maxAttempts, p.graceDays)
		if err != nil {
			return nil, err
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		if errors.Is(err, entity.ErrVersionConflict) {
			p.log.Warn("BillingProcessor", "Lost version race, another worker processed this subscription", map[string]interface{}{
				"subscription_id": sub.Id.String(),
			})
			outcome.Reason = "version conflict"
			return outcome, nil
		}
		return nil, err
	}
	if err := uow.BillingAttemptRepository().Create(ctx, attempt); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	outcome.Processed = true
	outcome.Success = result.Success
	outcome.Amount = amount
	outcome.TransactionId = result.TransactionId
	outcome.NewStatus = sub.Status

	p.afterCommit(ctx, sub, result, amount, wasPastDue, exhausted)
	return outcome, nil
}

// afterCommit emits events and notifications for a committed billing pass.
// Failures here are logged, never propagated; the database is the source of
// truth and downstream consumers catch up.
func (p *billingProcessor) afterCommit(ctx context.Context, sub *entity.Subscription, result *gateway.BillingResult, amount float64, wasPastDue, exhausted bool) {
	if result.Success {
		p.publish(ctx, events.NewBillingSucceeded(sub, amount, result.TransactionId))
		return
	}

	p.publish(ctx, events.NewBillingFailed(sub, amount, result.Message, result.ErrorCode))

	if exhausted {
		p.publish(ctx, events.NewSubscriptionCancelled(sub, constant.CancelReasonAttemptsExhausted))
		if sub.GatewayScheduleId != "" {
			if err := p.billingGateway.DisableBilling(ctx, sub.Id, sub.GatewayScheduleId); err != nil {
				p.log.Warn("BillingProcessor", "Failed to disable provider schedule", map[string]interface{}{
					"subscription_id": sub.Id.String(),
					"error":           err.Error(),
				})
			}
		}
		p.notifyDunning(sub, dto.DunningMessage{
			SubscriptionId: sub.Id,
			CustomerEmail:  sub.CustomerEmail,
			PlanId:         sub.PlanId,
			Kind:           dto.DunningKindCancelled,
			CancelReason:   constant.CancelReasonAttemptsExhausted,
		})
		return
	}

	if !wasPastDue {
		p.publish(ctx, events.NewSubscriptionPastDue(sub))
	}
	p.notifyDunning(sub, dto.DunningMessage{
		SubscriptionId: sub.Id,
		CustomerEmail:  sub.CustomerEmail,
		PlanId:         sub.PlanId,
		Kind:           dto.DunningKindPaymentFailed,
		Amount:         amount,
		Attempt:        sub.FailedPaymentAttempts,
		MaxAttempts:    p.maxAttempts,
		GraceDeadline:  sub.GracePeriodEnd,
	})
}

func (p *billingProcessor) publish(ctx context.Context, evt events.Event) {
	if p.eventPublisher == nil {
		return
	}
	if err := p.eventPublisher.PublishWithRetry(ctx, evt, 3); err != nil {
		p.log.Warn("BillingProcessor", "Failed to publish event", map[string]interface{}{
			"event_type": evt.EventType(),
			"aggregate":  evt.AggregateId(),
			"error":      err.Error(),
		})
	}
}

func (p *billingProcessor) notifyDunning(sub *entity.Subscription, payload dto.DunningMessage) {
	if p.dunning == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), raw)
	if err := p.dunning.Publish(constant.DunningTopicName, msg); err != nil {
		p.log.Warn("BillingProcessor", "Failed to enqueue dunning notification", map[string]interface{}{
			"subscription_id": sub.Id.String(),
			"error":           err.Error(),
		})
	}
}
