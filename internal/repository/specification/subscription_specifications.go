package specification

import (
	"time"

	"subscription-billing-be/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByCustomerID struct {
	CustomerID uuid.UUID
}

func (s ByCustomerID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("customer_id = ?", s.CustomerID)
}

type ByStatus struct {
	Status entity.SubscriptionStatus
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", string(s.Status))
}

type ByPlanID struct {
	PlanID string
}

func (s ByPlanID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("plan_id = ?", s.PlanID)
}

// DueOnOrBefore selects subscriptions whose next billing date has arrived.
// The daily billing job combines it with ByStatus{Active}.
type DueOnOrBefore struct {
	Date time.Time
}

func (s DueOnOrBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("next_billing_date <= ?", s.Date)
}

// GraceExpiredBefore selects past-due subscriptions whose grace window closed
// strictly before the given date.
type GraceExpiredBefore struct {
	Date time.Time
}

func (s GraceExpiredBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("grace_period_end IS NOT NULL AND grace_period_end < ?", s.Date)
}

// GraceActiveAt selects past-due subscriptions still inside their grace
// window, the retry job's candidate set.
type GraceActiveAt struct {
	Date time.Time
}

func (s GraceActiveAt) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("grace_period_end IS NOT NULL AND grace_period_end >= ?", s.Date)
}

// EndedOnOrBefore selects time-boxed subscriptions whose end date has passed.
type EndedOnOrBefore struct {
	Date time.Time
}

func (s EndedOnOrBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("end_date IS NOT NULL AND end_date <= ?", s.Date)
}
