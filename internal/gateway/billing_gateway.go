package gateway

import (
	"context"
	"time"

	"subscription-billing-be/internal/entity"

	"github.com/google/uuid"
)

// BillingScheduleRequest asks the provider to set up a recurring charge.
type BillingScheduleRequest struct {
	SubscriptionId     uuid.UUID
	CustomerId         uuid.UUID
	CustomerEmail      string
	Amount             float64
	Cycle              entity.BillingCycle
	FirstBillingDate   time.Time
	PaymentMethodToken string
}

// BillingScheduleResult reports whether the provider accepted the schedule.
// A declined schedule is a business outcome, not a transport error.
type BillingScheduleResult struct {
	Success bool
	Message string
	// ScheduleId is the provider's reference for the recurring schedule. The
	// aggregate stores it; nothing else of the provider's state is persisted.
	ScheduleId string
}

// BillingUpdateRequest changes an existing schedule. Nil fields are left
// untouched on the provider side.
type BillingUpdateRequest struct {
	SubscriptionId        uuid.UUID
	GatewayScheduleId     string
	NewAmount             *float64
	NewCycle              *entity.BillingCycle
	NewPaymentMethodToken *string
}

// ChargeRequest executes one immediate charge against the stored payment
// method.
type ChargeRequest struct {
	SubscriptionId     uuid.UUID
	CustomerId         uuid.UUID
	Amount             float64
	PaymentMethodToken string
	IsRetry            bool
}

// BillingResult is the outcome of a single charge attempt.
type BillingResult struct {
	Success       bool
	TransactionId string
	ChargedAmount float64
	Message       string
	ErrorCode     string
	RawResponse   map[string]interface{}
}

// BillingGateway is the port to the external payment provider. Declines and
// schedule rejections come back inside the result types; a non-nil error
// means the provider could not be reached at all. Callers treat both as a
// failed attempt, never as a reason to abort the batch.
type BillingGateway interface {
	ScheduleBilling(ctx context.Context, req BillingScheduleRequest) (*BillingScheduleResult, error)
	UpdateBilling(ctx context.Context, req BillingUpdateRequest) (*BillingScheduleResult, error)
	ExecuteCharge(ctx context.Context, req ChargeRequest) (*BillingResult, error)

	// DisableBilling tears down the provider-side schedule when a
	// subscription is cancelled locally. Best effort: the local row is the
	// source of truth, the provider schedule an eventually consistent mirror.
	DisableBilling(ctx context.Context, subscriptionId uuid.UUID, gatewayScheduleId string) error
}
