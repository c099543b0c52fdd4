package unitofwork

import (
	"context"

	"subscription-billing-be/internal/repository/contract"
)

// UnitOfWork scopes repository access to one transaction. A state machine
// transition, its persistence, and the billing attempt audit row commit or
// roll back together.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SubscriptionRepository() contract.SubscriptionRepository
	PlanRepository() contract.PlanRepository
	BillingAttemptRepository() contract.BillingAttemptRepository
}
