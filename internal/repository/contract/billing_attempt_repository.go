package contract

import (
	"context"

	"subscription-billing-be/internal/entity"

	"github.com/google/uuid"
)

type BillingAttemptRepository interface {
	Create(ctx context.Context, attempt *entity.BillingAttempt) error
	FindAllBySubscription(ctx context.Context, subscriptionId uuid.UUID) ([]*entity.BillingAttempt, error)
}
