package mapper

import (
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/model"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) ToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	return &entity.Subscription{
		Id:                    s.Id,
		CustomerId:            s.CustomerId,
		CustomerEmail:         s.CustomerEmail,
		PlanId:                s.PlanId,
		BillingCycle:          entity.BillingCycle(s.BillingCycle),
		MonthlyAmount:         s.MonthlyAmount,
		Status:                entity.SubscriptionStatus(s.Status),
		StartDate:             s.StartDate,
		NextBillingDate:       s.NextBillingDate,
		EndDate:               s.EndDate,
		GracePeriodEnd:        s.GracePeriodEnd,
		FailedPaymentAttempts: s.FailedPaymentAttempts,
		PaymentMethodToken:    s.PaymentMethodToken,
		GatewayScheduleId:     s.GatewayScheduleId,
		Version:               s.Version,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) ToModel(s *entity.Subscription) *model.Subscription {
	if s == nil {
		return nil
	}
	return &model.Subscription{
		Id:                    s.Id,
		CustomerId:            s.CustomerId,
		CustomerEmail:         s.CustomerEmail,
		PlanId:                s.PlanId,
		BillingCycle:          string(s.BillingCycle),
		MonthlyAmount:         s.MonthlyAmount,
		Status:                string(s.Status),
		StartDate:             s.StartDate,
		NextBillingDate:       s.NextBillingDate,
		EndDate:               s.EndDate,
		GracePeriodEnd:        s.GracePeriodEnd,
		FailedPaymentAttempts: s.FailedPaymentAttempts,
		PaymentMethodToken:    s.PaymentMethodToken,
		GatewayScheduleId:     s.GatewayScheduleId,
		Version:               s.Version,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}
