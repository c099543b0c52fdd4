package unitofwork

import (
	"context"

	"subscription-billing-be/internal/repository/implementation"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

type RepositoryFactoryImpl struct {
	db        *gorm.DB
	planCache *gocache.Cache
}

func NewRepositoryFactory(db *gorm.DB) RepositoryFactory {
	return &RepositoryFactoryImpl{
		db:        db,
		planCache: gocache.New(implementation.PlanCacheTTL, implementation.PlanCacheSweep),
	}
}

// NewUnitOfWork hands out a short-lived unit of work. The context is applied
// when Begin is called, or per repository call outside a transaction. The
// plan cache is shared across units of work.
func (f *RepositoryFactoryImpl) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return NewUnitOfWork(f.db, f.planCache)
}
