package memory

import (
	"context"
	"sync"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/repository/contract"
	"subscription-billing-be/internal/repository/specification"
)

type PlanRepository struct {
	mu   sync.RWMutex
	rows map[string]entity.Plan // keyed by external id
}

func NewPlanRepository() *PlanRepository {
	return &PlanRepository{
		rows: make(map[string]entity.Plan),
	}
}

var _ contract.PlanRepository = (*PlanRepository)(nil)

func (r *PlanRepository) Create(ctx context.Context, plan *entity.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[plan.ExternalId] = *plan
	return nil
}

func (r *PlanRepository) Update(ctx context.Context, plan *entity.Plan) error {
	return r.Create(ctx, plan)
}

func (r *PlanRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if planMatches(&row, specs) {
			plan := row
			return &plan, nil
		}
	}
	return nil, nil
}

func planMatches(p *entity.Plan, specs []specification.Specification) bool {
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok && p.Id != byID.ID {
			return false
		}
	}
	return true
}

func (r *PlanRepository) FindOneByExternalId(ctx context.Context, externalId string) (*entity.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plan, ok := r.rows[externalId]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (r *PlanRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Plan, 0, len(r.rows))
	for _, row := range r.rows {
		plan := row
		out = append(out, &plan)
	}
	return out, nil
}
