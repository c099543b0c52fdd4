// FILE: internal/dto/subscription_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSubscriptionRequest struct {
	PlanId             string     `json:"plan_id" validate:"required"`
	BillingCycle       string     `json:"billing_cycle" validate:"required,oneof=monthly quarterly yearly"`
	StartDate          *time.Time `json:"start_date" validate:"omitempty"`
	EndDate            *time.Time `json:"end_date" validate:"omitempty"`
	PaymentMethodToken string     `json:"payment_method_token" validate:"required"`
}

type UpdatePaymentMethodRequest struct {
	PaymentMethodToken string `json:"payment_method_token" validate:"required"`
}

type SubscriptionResponse struct {
	Id                    uuid.UUID  `json:"id"`
	CustomerId            uuid.UUID  `json:"customer_id"`
	PlanId                string     `json:"plan_id"`
	PlanName              string     `json:"plan_name,omitempty"`
	BillingCycle          string     `json:"billing_cycle"`
	MonthlyAmount         float64    `json:"monthly_amount"`
	ChargeAmount          float64    `json:"charge_amount"`
	Status                string     `json:"status"`
	StartDate             time.Time  `json:"start_date"`
	NextBillingDate       time.Time  `json:"next_billing_date"`
	EndDate               *time.Time `json:"end_date,omitempty"`
	GracePeriodEnd        *time.Time `json:"grace_period_end,omitempty"`
	FailedPaymentAttempts int        `json:"failed_payment_attempts"`
	CreatedAt             time.Time  `json:"created_at"`
}

type BillingAttemptResponse struct {
	Id            uuid.UUID `json:"id"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	IsRetry       bool      `json:"is_retry"`
	TransactionId string    `json:"transaction_id,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// DunningMessage is the internal payload handed to the notification consumer
// after a failed charge or a lifecycle-driven cancellation.
type DunningMessage struct {
	SubscriptionId uuid.UUID  `json:"subscription_id"`
	CustomerEmail  string     `json:"customer_email"`
	PlanId         string     `json:"plan_id"`
	PlanName       string     `json:"plan_name"`
	Kind           string     `json:"kind"` // payment_failed | cancelled
	Amount         float64    `json:"amount,omitempty"`
	Attempt        int        `json:"attempt,omitempty"`
	MaxAttempts    int        `json:"max_attempts,omitempty"`
	GraceDeadline  *time.Time `json:"grace_deadline,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
}

const (
	DunningKindPaymentFailed = "payment_failed"
	DunningKindCancelled     = "cancelled"
)
