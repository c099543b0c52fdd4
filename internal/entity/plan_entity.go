package entity

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a read-side catalog entry. Subscriptions reference plans by their
// opaque external id (PlanId on Subscription); the catalog exists so the
// checkout flow can resolve pricing without the caller hardcoding amounts.
type Plan struct {
	Id            uuid.UUID
	ExternalId    string
	Name          string
	Description   string
	MonthlyAmount float64
	BillingCycle  BillingCycle
	IsActive      bool
	SortOrder     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
