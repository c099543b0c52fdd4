// FILE: internal/service/subscription_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"subscription-billing-be/internal/constant"
	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/gateway"
	"subscription-billing-be/internal/pkg/logger"
	"subscription-billing-be/internal/repository/specification"
	"subscription-billing-be/internal/repository/unitofwork"
	"subscription-billing-be/pkg/events"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ISubscriptionService interface {
	CreateSubscription(ctx context.Context, customerId uuid.UUID, customerEmail string, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, customerId uuid.UUID) ([]*dto.SubscriptionResponse, error)
	PauseSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) error
	ResumeSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) error
	CancelSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) error
	UpdatePaymentMethod(ctx context.Context, customerId, subscriptionId uuid.UUID, req *dto.UpdatePaymentMethodRequest) error
	GetBillingHistory(ctx context.Context, customerId, subscriptionId uuid.UUID) ([]*dto.BillingAttemptResponse, error)
}

type subscriptionService struct {
	uowFactory           unitofwork.RepositoryFactory
	billingGateway       gateway.BillingGateway
	eventPublisher       events.Publisher
	validate             *validator.Validate
	log                  logger.ILogger
	maxActivePerCustomer int
}

func NewSubscriptionService(
	uowFactory unitofwork.RepositoryFactory,
	billingGateway gateway.BillingGateway,
	eventPublisher events.Publisher,
	log logger.ILogger,
	maxActivePerCustomer int,
) ISubscriptionService {
	return &subscriptionService{
		uowFactory:           uowFactory,
		billingGateway:       billingGateway,
		eventPublisher:       eventPublisher,
		validate:             validator.New(),
		log:                  log,
		maxActivePerCustomer: maxActivePerCustomer,
	}
}

// CreateSubscription runs the creation saga: persist a pending subscription,
// register the recurring schedule with the payment provider, then activate.
// Any failure after the pending row is persisted, including a panic, routes
// through compensation so no half-created subscription survives.
func (s *subscriptionService) CreateSubscription(ctx context.Context, customerId uuid.UUID, customerEmail string, req *dto.CreateSubscriptionRequest) (res *dto.SubscriptionResponse, err error) {
	var (
		persisted  *entity.Subscription
		scheduleId string
	)
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("subscription creation failed: %v", r)
			if persisted != nil {
				s.compensateCreation(ctx, persisted.Id, scheduleId, err.Error())
			}
		}
	}()

	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	cycle := entity.BillingCycle(req.BillingCycle)
	if !cycle.Valid() {
		return nil, fmt.Errorf("unsupported billing cycle: %s", req.BillingCycle)
	}

	startDate := time.Now().UTC()
	if req.StartDate != nil {
		startDate = req.StartDate.UTC()
	}
	if req.EndDate != nil && !req.EndDate.After(startDate) {
		return nil, errors.New("end date must be after start date")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	plan, err := uow.PlanRepository().FindOneByExternalId(ctx, req.PlanId)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, entity.ErrPlanNotFound
	}

	exists, err := uow.SubscriptionRepository().ExistsActiveForCustomerAndPlan(ctx, customerId, plan.ExternalId)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, entity.ErrDuplicateSubscription
	}

	activeCount, err := uow.SubscriptionRepository().CountActiveByCustomer(ctx, customerId)
	if err != nil {
		return nil, err
	}
	if activeCount >= int64(s.maxActivePerCustomer) {
		return nil, entity.ErrSubscriptionLimitReached
	}

	sub := entity.NewSubscription(customerId, customerEmail, plan.ExternalId, cycle, plan.MonthlyAmount, startDate, req.EndDate, req.PaymentMethodToken)

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.SubscriptionRepository().Create(ctx, sub); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	persisted = sub

	s.publish(ctx, events.NewSubscriptionCreated(sub))

	scheduleRes, schedErr := s.billingGateway.ScheduleBilling(ctx, gateway.BillingScheduleRequest{
		SubscriptionId:     sub.Id,
		CustomerId:         customerId,
		CustomerEmail:      customerEmail,
		Amount:             sub.ChargeAmount(),
		Cycle:              cycle,
		FirstBillingDate:   sub.NextBillingDate,
		PaymentMethodToken: req.PaymentMethodToken,
	})
	if schedErr != nil || !scheduleRes.Success {
		reason := "provider unreachable"
		if schedErr == nil {
			reason = scheduleRes.Message
		}
		s.compensateCreation(ctx, sub.Id, "", reason)
		return nil, fmt.Errorf("billing schedule rejected: %s", reason)
	}
	scheduleId = scheduleRes.ScheduleId

	sub.GatewayScheduleId = scheduleRes.ScheduleId
	if err := sub.Activate(); err != nil {
		s.compensateCreation(ctx, sub.Id, scheduleId, err.Error())
		return nil, fmt.Errorf("subscription activation failed: %w", err)
	}
	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		s.compensateCreation(ctx, sub.Id, scheduleId, err.Error())
		return nil, fmt.Errorf("subscription activation failed: %w", err)
	}

	s.publish(ctx, events.NewSubscriptionActivated(sub))

	s.log.Info("SubscriptionService", "Subscription activated", map[string]interface{}{
		"subscription_id": sub.Id.String(),
		"customer_id":     customerId.String(),
		"plan_id":         plan.ExternalId,
	})

	return toSubscriptionResponse(sub, plan.Name), nil
}

// compensateCreation cancels the row after the saga could not finish, so no
// subscription is left pending with a live provider schedule. The row is
// re-read on each attempt: a concurrent writer bumping the version only
// forces a retry against the fresh state, and a row it already cancelled
// makes the compensation a no-op. Compensation failures are logged; the
// grace sweep will not touch a pending row, so an operator alert is the
// fallback.
func (s *subscriptionService) compensateCreation(ctx context.Context, subscriptionId uuid.UUID, scheduleId string, reason string) {
	const maxRetries = 3
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if scheduleId != "" {
		if err := s.billingGateway.DisableBilling(ctx, subscriptionId, scheduleId); err != nil {
			s.log.Warn("SubscriptionService", "Failed to tear down provider schedule", map[string]interface{}{
				"subscription_id": subscriptionId.String(),
				"error":           err.Error(),
			})
		}
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.ByID{ID: subscriptionId})
		if err != nil || sub == nil {
			break
		}
		if sub.Status == entity.SubscriptionStatusCancelled {
			return
		}
		if err := sub.Cancel(); err != nil {
			s.log.Error("SubscriptionService", "Compensation transition failed", map[string]interface{}{
				"subscription_id": subscriptionId.String(),
				"error":           err.Error(),
			})
			return
		}
		err = uow.SubscriptionRepository().Update(ctx, sub)
		if err == nil {
			s.publish(ctx, events.NewSubscriptionCancelled(sub, constant.CancelReasonScheduleFailed))
			s.log.Warn("SubscriptionService", "Creation compensated", map[string]interface{}{
				"subscription_id": subscriptionId.String(),
				"reason":          reason,
			})
			return
		}
		if !errors.Is(err, entity.ErrVersionConflict) {
			break
		}
	}
	s.log.Error("SubscriptionService", "Failed to persist compensation cancel", map[string]interface{}{
		"subscription_id": subscriptionId.String(),
		"reason":          reason,
	})
}

func (s *subscriptionService) GetSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) (*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := s.findOwned(ctx, uow, customerId, subscriptionId)
	if err != nil {
		return nil, err
	}
	return toSubscriptionResponse(sub, s.planName(ctx, uow, sub.PlanId)), nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, customerId uuid.UUID) ([]*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	subs, err := uow.SubscriptionRepository().FindAll(ctx,
		specification.ByCustomerID{CustomerID: customerId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		res = append(res, toSubscriptionResponse(sub, s.planName(ctx, uow, sub.PlanId)))
	}
	return res, nil
}

func (s *subscriptionService) PauseSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) error {
	sub, err := s.mutate(ctx, customerId, subscriptionId, func(sub *entity.Subscription) error {
		return sub.Pause()
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.NewSubscriptionPaused(sub))
	return nil
}

func (s *subscriptionService) ResumeSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) error {
	sub, err := s.mutate(ctx, customerId, subscriptionId, func(sub *entity.Subscription) error {
		return sub.Resume()
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.NewSubscriptionResumed(sub))
	return nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, customerId, subscriptionId uuid.UUID) error {
	var alreadyCancelled bool
	sub, err := s.mutate(ctx, customerId, subscriptionId, func(sub *entity.Subscription) error {
		alreadyCancelled = sub.Status == entity.SubscriptionStatusCancelled
		return sub.Cancel()
	})
	if err != nil {
		return err
	}
	if alreadyCancelled {
		return nil
	}

	if sub.GatewayScheduleId != "" {
		if err := s.billingGateway.DisableBilling(ctx, sub.Id, sub.GatewayScheduleId); err != nil {
			s.log.Warn("SubscriptionService", "Failed to disable provider schedule", map[string]interface{}{
				"subscription_id": sub.Id.String(),
				"error":           err.Error(),
			})
		}
	}
	s.publish(ctx, events.NewSubscriptionCancelled(sub, constant.CancelReasonCustomerRequest))
	return nil
}

func (s *subscriptionService) GetBillingHistory(ctx context.Context, customerId, subscriptionId uuid.UUID) ([]*dto.BillingAttemptResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findOwned(ctx, uow, customerId, subscriptionId); err != nil {
		return nil, err
	}

	attempts, err := uow.BillingAttemptRepository().FindAllBySubscription(ctx, subscriptionId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.BillingAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		res = append(res, &dto.BillingAttemptResponse{
			Id:            a.Id,
			Amount:        a.Amount,
			Status:        string(a.Status),
			IsRetry:       a.IsRetry,
			TransactionId: a.TransactionId,
			ErrorCode:     a.ErrorCode,
			ErrorMessage:  a.ErrorMessage,
			AttemptedAt:   a.AttemptedAt,
		})
	}
	return res, nil
}

// UpdatePaymentMethod swaps the stored payment token and pushes the new
// token to the provider schedule so future provider-side charges use it.
func (s *subscriptionService) UpdatePaymentMethod(ctx context.Context, customerId, subscriptionId uuid.UUID, req *dto.UpdatePaymentMethodRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}

	sub, err := s.mutate(ctx, customerId, subscriptionId, func(sub *entity.Subscription) error {
		return sub.ChangePaymentMethod(req.PaymentMethodToken)
	})
	if err != nil {
		return err
	}

	if sub.GatewayScheduleId != "" {
		token := req.PaymentMethodToken
		res, err := s.billingGateway.UpdateBilling(ctx, gateway.BillingUpdateRequest{
			SubscriptionId:        sub.Id,
			GatewayScheduleId:     sub.GatewayScheduleId,
			NewPaymentMethodToken: &token,
		})
		if err != nil || !res.Success {
			// The local row is the source of truth; the provider mirror
			// catches up on the next reconciling call.
			s.log.Warn("SubscriptionService", "Failed to update provider schedule", map[string]interface{}{
				"subscription_id": sub.Id.String(),
			})
		}
	}
	return nil
}

// mutate applies a transition to an owned subscription with an optimistic
// retry loop. A version conflict means a scheduler worker touched the row
// concurrently; the transition is re-applied against the fresh state.
func (s *subscriptionService) mutate(ctx context.Context, customerId, subscriptionId uuid.UUID, fn func(*entity.Subscription) error) (*entity.Subscription, error) {
	const maxRetries = 3
	uow := s.uowFactory.NewUnitOfWork(ctx)

	for attempt := 0; attempt < maxRetries; attempt++ {
		sub, err := s.findOwned(ctx, uow, customerId, subscriptionId)
		if err != nil {
			return nil, err
		}
		if err := fn(sub); err != nil {
			return nil, err
		}
		err = uow.SubscriptionRepository().Update(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, entity.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, entity.ErrVersionConflict
}

func (s *subscriptionService) findOwned(ctx context.Context, uow unitofwork.UnitOfWork, customerId, subscriptionId uuid.UUID) (*entity.Subscription, error) {
	sub, err := uow.SubscriptionRepository().FindOne(ctx,
		specification.ByID{ID: subscriptionId},
		specification.ByCustomerID{CustomerID: customerId},
	)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, entity.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *subscriptionService) planName(ctx context.Context, uow unitofwork.UnitOfWork, planId string) string {
	plan, err := uow.PlanRepository().FindOneByExternalId(ctx, planId)
	if err != nil || plan == nil {
		return ""
	}
	return plan.Name
}

func (s *subscriptionService) publish(ctx context.Context, evt events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.log.Warn("SubscriptionService", "Failed to publish event", map[string]interface{}{
			"event_type": evt.EventType(),
			"aggregate":  evt.AggregateId(),
			"error":      err.Error(),
		})
	}
}

func toSubscriptionResponse(sub *entity.Subscription, planName string) *dto.SubscriptionResponse {
	return &dto.SubscriptionResponse{
		Id:                    sub.Id,
		CustomerId:            sub.CustomerId,
		PlanId:                sub.PlanId,
		PlanName:              planName,
		BillingCycle:          string(sub.BillingCycle),
		MonthlyAmount:         sub.MonthlyAmount,
		ChargeAmount:          sub.ChargeAmount(),
		Status:                string(sub.Status),
		StartDate:             sub.StartDate,
		NextBillingDate:       sub.NextBillingDate,
		EndDate:               sub.EndDate,
		GracePeriodEnd:        sub.GracePeriodEnd,
		FailedPaymentAttempts: sub.FailedPaymentAttempts,
		CreatedAt:             sub.CreatedAt,
	}
}
