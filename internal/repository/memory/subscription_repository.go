package memory

import (
	"context"
	"sync"
	"time"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/repository/contract"
	"subscription-billing-be/internal/repository/specification"

	"github.com/google/uuid"
)

// SubscriptionRepository is an in-memory contract.SubscriptionRepository used
// by service tests. It honors the optimistic version check the way the gorm
// implementation does.
type SubscriptionRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]entity.Subscription
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		rows: make(map[uuid.UUID]entity.Subscription),
	}
}

var _ contract.SubscriptionRepository = (*SubscriptionRepository)(nil)

func (r *SubscriptionRepository) Create(ctx context.Context, sub *entity.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[sub.Id] = *sub
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *entity.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[sub.Id]
	if !ok {
		return entity.ErrSubscriptionNotFound
	}
	if stored.Version != sub.Version {
		return entity.ErrVersionConflict
	}
	sub.Version++
	r.rows[sub.Id] = *sub
	return nil
}

// Seed stores a subscription directly, bypassing version checks.
func (r *SubscriptionRepository) Seed(sub *entity.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[sub.Id] = *sub
}

// Get returns a copy of the stored row.
func (r *SubscriptionRepository) Get(id uuid.UUID) (*entity.Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.rows[id]
	if !ok {
		return nil, false
	}
	return &sub, true
}

func (r *SubscriptionRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if matches(&row, specs) {
			sub := row
			return &sub, nil
		}
	}
	return nil, nil
}

func (r *SubscriptionRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Subscription
	for _, row := range r.rows {
		if matches(&row, specs) {
			sub := row
			out = append(out, &sub)
		}
	}
	return out, nil
}

func (r *SubscriptionRepository) FindDueForBilling(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	return r.filter(func(s *entity.Subscription) bool {
		return s.Status == entity.SubscriptionStatusActive && !s.NextBillingDate.After(asOf)
	}), nil
}

func (r *SubscriptionRepository) FindPastDueInGrace(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	return r.filter(func(s *entity.Subscription) bool {
		return s.Status == entity.SubscriptionStatusPastDue &&
			s.GracePeriodEnd != nil && !s.GracePeriodEnd.Before(asOf)
	}), nil
}

func (r *SubscriptionRepository) FindPastDueGraceExpired(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	return r.filter(func(s *entity.Subscription) bool {
		return s.Status == entity.SubscriptionStatusPastDue &&
			s.GracePeriodEnd != nil && s.GracePeriodEnd.Before(asOf)
	}), nil
}

func (r *SubscriptionRepository) FindEndedBy(ctx context.Context, asOf time.Time) ([]*entity.Subscription, error) {
	return r.filter(func(s *entity.Subscription) bool {
		return !s.Status.IsTerminal() && s.EndDate != nil && !s.EndDate.After(asOf)
	}), nil
}

func (r *SubscriptionRepository) CountActiveByCustomer(ctx context.Context, customerId uuid.UUID) (int64, error) {
	var count int64
	for _, s := range r.filter(func(s *entity.Subscription) bool {
		return s.CustomerId == customerId && !s.Status.IsTerminal()
	}) {
		_ = s
		count++
	}
	return count, nil
}

func (r *SubscriptionRepository) ExistsActiveForCustomerAndPlan(ctx context.Context, customerId uuid.UUID, planId string) (bool, error) {
	found := r.filter(func(s *entity.Subscription) bool {
		return s.CustomerId == customerId && s.PlanId == planId && !s.Status.IsTerminal()
	})
	return len(found) > 0, nil
}

func (r *SubscriptionRepository) filter(keep func(*entity.Subscription) bool) []*entity.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Subscription
	for _, row := range r.rows {
		sub := row
		if keep(&sub) {
			out = append(out, &sub)
		}
	}
	return out
}

// matches evaluates the subset of specifications the memory repository
// understands. Tests only combine ByID, ByCustomerID, ByStatus and ByPlanID.
func matches(s *entity.Subscription, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if s.Id != sp.ID {
				return false
			}
		case specification.ByCustomerID:
			if s.CustomerId != sp.CustomerID {
				return false
			}
		case specification.ByStatus:
			if s.Status != sp.Status {
				return false
			}
		case specification.ByPlanID:
			if s.PlanId != sp.PlanID {
				return false
			}
		}
	}
	return true
}
