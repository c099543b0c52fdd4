package contract

import (
	"context"
	"time"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *entity.Subscription) error

	// Update persists the subscription with an optimistic version check.
	// If the row was modified since the entity was read it returns
	// entity.ErrVersionConflict and the caller must re-read and retry.
	Update(ctx context.Context, sub *entity.Subscription) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error)

	// Scheduler candidate sets.
	FindDueForBilling(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error)
	FindPastDueInGrace(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error)
	FindPastDueGraceExpired(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error)
	FindEndedBy(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error)

	// Creation guards.
	CountActiveByCustomer(ctx context.Context, customerId uuid.UUID) (int64, error)
	ExistsActiveForCustomerAndPlan(ctx context.Context, customerId uuid.UUID, planId string) (bool, error)
}
