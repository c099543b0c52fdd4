// FILE: internal/service/plan_service.go
package service

import (
	"context"

	"subscription-billing-be/internal/dto"
	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/repository/specification"
	"subscription-billing-be/internal/repository/unitofwork"
)

type IPlanService interface {
	GetPlans(ctx context.Context) ([]*dto.PlanResponse, error)
	GetPlan(ctx context.Context, externalId string) (*dto.PlanResponse, error)
}

type planService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewPlanService(uowFactory unitofwork.RepositoryFactory) IPlanService {
	return &planService{
		uowFactory: uowFactory,
	}
}

func (s *planService) GetPlans(ctx context.Context) ([]*dto.PlanResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	plans, err := uow.PlanRepository().FindAll(ctx, specification.OrderBy{Field: "sort_order"})
	if err != nil {
		return nil, err
	}

	res := make([]*dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		if !p.IsActive {
			continue
		}
		res = append(res, toPlanResponse(p))
	}
	return res, nil
}

func (s *planService) GetPlan(ctx context.Context, externalId string) (*dto.PlanResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	plan, err := uow.PlanRepository().FindOneByExternalId(ctx, externalId)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, entity.ErrPlanNotFound
	}
	return toPlanResponse(plan), nil
}

func toPlanResponse(p *entity.Plan) *dto.PlanResponse {
	return &dto.PlanResponse{
		Id:            p.Id,
		ExternalId:    p.ExternalId,
		Name:          p.Name,
		Description:   p.Description,
		MonthlyAmount: p.MonthlyAmount,
		BillingCycle:  string(p.BillingCycle),
	}
}
