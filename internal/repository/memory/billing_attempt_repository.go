package memory

import (
	"context"
	"sync"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/repository/contract"

	"github.com/google/uuid"
)

type BillingAttemptRepository struct {
	mu   sync.RWMutex
	rows []entity.BillingAttempt
}

func NewBillingAttemptRepository() *BillingAttemptRepository {
	return &BillingAttemptRepository{}
}

var _ contract.BillingAttemptRepository = (*BillingAttemptRepository)(nil)

func (r *BillingAttemptRepository) Create(ctx context.Context, attempt *entity.BillingAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt.Id == uuid.Nil {
		attempt.Id = uuid.New()
	}
	r.rows = append(r.rows, *attempt)
	return nil
}

func (r *BillingAttemptRepository) FindAllBySubscription(ctx context.Context, subscriptionId uuid.UUID) ([]*entity.BillingAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.BillingAttempt
	for _, row := range r.rows {
		if row.SubscriptionId == subscriptionId {
			attempt := row
			out = append(out, &attempt)
		}
	}
	return out, nil
}
