package memory

import (
	"context"

	"subscription-billing-be/internal/repository/contract"
	"subscription-billing-be/internal/repository/unitofwork"
)

// UnitOfWork wraps the in-memory repositories behind the unitofwork
// interfaces. Begin/Commit/Rollback are no-ops: the memory repositories
// apply writes immediately, which is enough for service-level tests.
type UnitOfWork struct {
	Subscriptions   *SubscriptionRepository
	Plans           *PlanRepository
	BillingAttempts *BillingAttemptRepository
}

var _ unitofwork.UnitOfWork = (*UnitOfWork)(nil)

func (u *UnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *UnitOfWork) Commit() error                   { return nil }
func (u *UnitOfWork) Rollback() error                 { return nil }

func (u *UnitOfWork) SubscriptionRepository() contract.SubscriptionRepository {
	return u.Subscriptions
}

func (u *UnitOfWork) PlanRepository() contract.PlanRepository {
	return u.Plans
}

func (u *UnitOfWork) BillingAttemptRepository() contract.BillingAttemptRepository {
	return u.BillingAttempts
}

// Factory hands the same unit of work to every caller, so tests can inspect
// the repositories after the service ran.
type Factory struct {
	Uow *UnitOfWork
}

var _ unitofwork.RepositoryFactory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{
		Uow: &UnitOfWork{
			Subscriptions:   NewSubscriptionRepository(),
			Plans:           NewPlanRepository(),
			BillingAttempts: NewBillingAttemptRepository(),
		},
	}
}

func (f *Factory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.Uow
}
