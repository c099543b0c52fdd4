package implementation

import (
	"context"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/mapper"
	"subscription-billing-be/internal/model"
	"subscription-billing-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BillingAttemptRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BillingAttemptMapper
}

func NewBillingAttemptRepository(db *gorm.DB) contract.BillingAttemptRepository {
	return &BillingAttemptRepositoryImpl{
		db:     db,
		mapper: mapper.NewBillingAttemptMapper(),
	}
}

func (r *BillingAttemptRepositoryImpl) Create(ctx context.Context, attempt *entity.BillingAttempt) error {
	m := r.mapper.ToModel(attempt)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*attempt = *r.mapper.ToEntity(m)
	return nil
}

func (r *BillingAttemptRepositoryImpl) FindAllBySubscription(ctx context.Context, subscriptionId uuid.UUID) ([]*entity.BillingAttempt, error) {
	var models []*model.BillingAttempt
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionId).
		Order("attempted_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.BillingAttempt, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
