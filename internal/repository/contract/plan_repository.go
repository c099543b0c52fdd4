package contract

import (
	"context"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/repository/specification"
)

type PlanRepository interface {
	Create(ctx context.Context, plan *entity.Plan) error
	Update(ctx context.Context, plan *entity.Plan) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error)
	FindOneByExternalId(ctx context.Context, externalId string) (*entity.Plan, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error)
}
