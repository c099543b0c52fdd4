package unitofwork

import (
	"context"
	"fmt"

	"subscription-billing-be/internal/repository/contract"
	"subscription-billing-be/internal/repository/implementation"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db        *gorm.DB
	tx        *gorm.DB // nil outside a transaction
	planCache *gocache.Cache
}

func NewUnitOfWork(db *gorm.DB, planCache *gocache.Cache) UnitOfWork {
	return &UnitOfWorkImpl{
		db:        db,
		planCache: planCache,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) SubscriptionRepository() contract.SubscriptionRepository {
	return implementation.NewSubscriptionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) PlanRepository() contract.PlanRepository {
	repo := implementation.NewPlanRepository(u.getDB())
	if u.planCache == nil {
		return repo
	}
	return implementation.NewCachedPlanRepository(repo, u.planCache)
}

func (u *UnitOfWorkImpl) BillingAttemptRepository() contract.BillingAttemptRepository {
	return implementation.NewBillingAttemptRepository(u.getDB())
}
