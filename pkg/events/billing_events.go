package events

import (
	"time"

	"subscription-billing-be/internal/entity"
)

const (
	TypeSubscriptionCreated   = "SUBSCRIPTION_CREATED"
	TypeSubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	TypeBillingSucceeded      = "BILLING_SUCCEEDED"
	TypeBillingFailed         = "BILLING_FAILED"
	TypeSubscriptionPastDue   = "SUBSCRIPTION_PAST_DUE"
	TypeSubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
	TypeSubscriptionExpired   = "SUBSCRIPTION_EXPIRED"
	TypeSubscriptionPaused    = "SUBSCRIPTION_PAUSED"
	TypeSubscriptionResumed   = "SUBSCRIPTION_RESUMED"
)

func newSubscriptionEvent(eventType string, sub *entity.Subscription, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"subscription_id": sub.Id.String(),
		"customer_id":     sub.CustomerId.String(),
		"customer_email":  sub.CustomerEmail,
		"plan_id":         sub.PlanId,
		"status":          string(sub.Status),
		"billing_cycle":   string(sub.BillingCycle),
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Aggregate:  sub.Id.String(),
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

func NewSubscriptionCreated(sub *entity.Subscription) Event {
	return newSubscriptionEvent(TypeSubscriptionCreated, sub, map[string]interface{}{
		"monthly_amount":    sub.MonthlyAmount,
		"charge_amount":     sub.ChargeAmount(),
		"next_billing_date": sub.NextBillingDate,
	})
}

func NewSubscriptionActivated(sub *entity.Subscription) Event {
	return newSubscriptionEvent(TypeSubscriptionActivated, sub, nil)
}

func NewBillingSucceeded(sub *entity.Subscription, amount float64, transactionId string) Event {
	return newSubscriptionEvent(TypeBillingSucceeded, sub, map[string]interface{}{
		"amount":            amount,
		"transaction_id":    transactionId,
		"next_billing_date": sub.NextBillingDate,
	})
}

func NewBillingFailed(sub *entity.Subscription, amount float64, message, errorCode string) Event {
	return newSubscriptionEvent(TypeBillingFailed, sub, map[string]interface{}{
		"amount":          amount,
		"failed_attempts": sub.FailedPaymentAttempts,
		"message":         message,
		"error_code":      errorCode,
	})
}

func NewSubscriptionPastDue(sub *entity.Subscription) Event {
	extra := map[string]interface{}{
		"failed_attempts": sub.FailedPaymentAttempts,
	}
	if sub.GracePeriodEnd != nil {
		extra["grace_period_end"] = *sub.GracePeriodEnd
	}
	return newSubscriptionEvent(TypeSubscriptionPastDue, sub, extra)
}

func NewSubscriptionCancelled(sub *entity.Subscription, reason string) Event {
	return newSubscriptionEvent(TypeSubscriptionCancelled, sub, map[string]interface{}{
		"reason": reason,
	})
}

func NewSubscriptionExpired(sub *entity.Subscription) Event {
	return newSubscriptionEvent(TypeSubscriptionExpired, sub, nil)
}

func NewSubscriptionPaused(sub *entity.Subscription) Event {
	return newSubscriptionEvent(TypeSubscriptionPaused, sub, nil)
}

func NewSubscriptionResumed(sub *entity.Subscription) Event {
	return newSubscriptionEvent(TypeSubscriptionResumed, sub, nil)
}
