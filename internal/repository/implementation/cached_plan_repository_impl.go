package implementation

import (
	"context"
	"time"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/repository/contract"
	"subscription-billing-be/internal/repository/specification"

	gocache "github.com/patrickmn/go-cache"
)

const (
	PlanCacheTTL     = 5 * time.Minute
	PlanCacheSweep   = 10 * time.Minute
	planCacheAllKey  = "plans:all"
	planCacheKeyBase = "plans:external:"
)

// CachedPlanRepository decorates a PlanRepository with a short-lived in-memory
// cache. The catalog changes rarely but is read on every checkout. The cache
// is owned by the caller so it survives across units of work.
type CachedPlanRepository struct {
	inner contract.PlanRepository
	cache *gocache.Cache
}

func NewCachedPlanRepository(inner contract.PlanRepository, cache *gocache.Cache) contract.PlanRepository {
	return &CachedPlanRepository{
		inner: inner,
		cache: cache,
	}
}

func (r *CachedPlanRepository) Create(ctx context.Context, plan *entity.Plan) error {
	if err := r.inner.Create(ctx, plan); err != nil {
		return err
	}
	r.cache.Flush()
	return nil
}

func (r *CachedPlanRepository) Update(ctx context.Context, plan *entity.Plan) error {
	if err := r.inner.Update(ctx, plan); err != nil {
		return err
	}
	r.cache.Flush()
	return nil
}

// FindOne bypasses the cache: specification queries are too varied to key.
func (r *CachedPlanRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error) {
	return r.inner.FindOne(ctx, specs...)
}

func (r *CachedPlanRepository) FindOneByExternalId(ctx context.Context, externalId string) (*entity.Plan, error) {
	key := planCacheKeyBase + externalId
	if cached, ok := r.cache.Get(key); ok {
		plan := cached.(entity.Plan)
		return &plan, nil
	}
	plan, err := r.inner.FindOneByExternalId(ctx, externalId)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		r.cache.Set(key, *plan, gocache.DefaultExpiration)
	}
	return plan, nil
}

func (r *CachedPlanRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error) {
	if len(specs) == 0 {
		if cached, ok := r.cache.Get(planCacheAllKey); ok {
			return cached.([]*entity.Plan), nil
		}
	}
	plans, err := r.inner.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		r.cache.Set(planCacheAllKey, plans, gocache.DefaultExpiration)
	}
	return plans, nil
}
