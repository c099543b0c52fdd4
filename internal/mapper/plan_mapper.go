package mapper

import (
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/model"
)

type PlanMapper struct{}

func NewPlanMapper() *PlanMapper {
	return &PlanMapper{}
}

func (m *PlanMapper) ToEntity(p *model.Plan) *entity.Plan {
	if p == nil {
		return nil
	}
	return &entity.Plan{
		Id:            p.Id,
		ExternalId:    p.ExternalId,
		Name:          p.Name,
		Description:   p.Description,
		MonthlyAmount: p.MonthlyAmount,
		BillingCycle:  entity.BillingCycle(p.BillingCycle),
		IsActive:      p.IsActive,
		SortOrder:     p.SortOrder,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (m *PlanMapper) ToModel(p *entity.Plan) *model.Plan {
	if p == nil {
		return nil
	}
	return &model.Plan{
		Id:            p.Id,
		ExternalId:    p.ExternalId,
		Name:          p.Name,
		Description:   p.Description,
		MonthlyAmount: p.MonthlyAmount,
		BillingCycle:  string(p.BillingCycle),
		IsActive:      p.IsActive,
		SortOrder:     p.SortOrder,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
