package entity

import (
	"time"

	"github.com/google/uuid"
)

type BillingAttemptStatus string

const (
	BillingAttemptStatusSucceeded BillingAttemptStatus = "succeeded"
	BillingAttemptStatusFailed    BillingAttemptStatus = "failed"
)

// BillingAttempt is the audit record of one gateway charge attempt. It is
// written in the same transaction as the subscription state change so the
// trail never disagrees with the aggregate.
type BillingAttempt struct {
	Id             uuid.UUID
	SubscriptionId uuid.UUID
	Amount         float64
	Status         BillingAttemptStatus
	IsRetry        bool
	TransactionId  string
	ErrorCode      string
	ErrorMessage   string
	GatewayPayload map[string]interface{}
	AttemptedAt    time.Time
}
