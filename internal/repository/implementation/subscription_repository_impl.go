package implementation

import (
	"context"
	"errors"
	"time"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/mapper"
	"subscription-billing-be/internal/model"
	"subscription-billing-be/internal/repository/contract"
	"subscription-billing-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SubscriptionMapper
}

func NewSubscriptionRepository(db *gorm.DB) contract.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSubscriptionMapper(),
	}
}

func (r *SubscriptionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, sub *entity.Subscription) error {
	m := r.mapper.ToModel(sub)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*sub = *r.mapper.ToEntity(m)
	return nil
}

// Update writes the full row guarded by the version column. Losing a race
// yields entity.ErrVersionConflict instead of silently overwriting the other
// writer's transition.
func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, sub *entity.Subscription) error {
	m := r.mapper.ToModel(sub)
	currentVersion := m.Version
	m.Version = currentVersion + 1

	res := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND version = ?", m.Id, currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entity.ErrVersionConflict
	}
	sub.Version = m.Version
	return nil
}

func (r *SubscriptionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	var m model.Subscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SubscriptionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error) {
	var models []*model.Subscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Subscription, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *SubscriptionRepositoryImpl) FindDueForBilling(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	return r.FindAll(ctx,
		specification.ByStatus{Status: entity.SubscriptionStatusActive},
		specification.DueOnOrBefore{Date: asOf},
		specification.OrderBy{Field: "next_billing_date"},
	)
}

func (r *SubscriptionRepositoryImpl) FindPastDueInGrace(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	return r.FindAll(ctx,
		specification.ByStatus{Status: entity.SubscriptionStatusPastDue},
		specification.GraceActiveAt{Date: asOf},
		specification.OrderBy{Field: "grace_period_end"},
	)
}

func (r *SubscriptionRepositoryImpl) FindPastDueGraceExpired(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	return r.FindAll(ctx,
		specification.ByStatus{Status: entity.SubscriptionStatusPastDue},
		specification.GraceExpiredBefore{Date: asOf},
		specification.OrderBy{Field: "grace_period_end"},
	)
}

func (r *SubscriptionRepositoryImpl) FindEndedBy(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	var models []*model.Subscription
	query := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{
			string(entity.SubscriptionStatusCancelled),
			string(entity.SubscriptionStatusExpired),
		})
	query = specification.EndedOnOrBefore{Date: asOf}.Apply(query)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Subscription, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *SubscriptionRepositoryImpl) CountActiveByCustomer(ctx context.Context, customerId uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("customer_id = ? AND status IN ?", customerId, activeLikeStatuses()).
		Count(&count).Error
	return count, err
}

func (r *SubscriptionRepositoryImpl) ExistsActiveForCustomerAndPlan(ctx context.Context, customerId uuid.UUID, planId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("customer_id = ? AND plan_id = ? AND status IN ?", customerId, planId, activeLikeStatuses()).
		Count(&count).Error
	return count > 0, err
}

// activeLikeStatuses are the statuses that hold a customer's subscription
// slot: anything not terminal still owes (or may owe) charges.
func activeLikeStatuses() []string {
	return []string{
		string(entity.SubscriptionStatusPending),
		string(entity.SubscriptionStatusActive),
		string(entity.SubscriptionStatusPaused),
		string(entity.SubscriptionStatusPastDue),
	}
}
