package model

import (
	"time"

	"github.com/google/uuid"
)

type Subscription struct {
	Id                    uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CustomerId            uuid.UUID  `gorm:"type:uuid;not null;index"`
	CustomerEmail         string     `gorm:"type:varchar(255);not null"`
	PlanId                string     `gorm:"type:varchar(255);not null;index"`
	BillingCycle          string     `gorm:"type:varchar(20);not null"`
	MonthlyAmount         float64    `gorm:"type:decimal(10,2);not null"`
	Status                string     `gorm:"type:varchar(20);not null;index:idx_subscriptions_status_due"`
	StartDate             time.Time  `gorm:"not null"`
	NextBillingDate       time.Time  `gorm:"not null;index:idx_subscriptions_status_due"`
	EndDate               *time.Time `gorm:""`
	GracePeriodEnd        *time.Time `gorm:"index"`
	FailedPaymentAttempts int        `gorm:"not null;default:0"`
	PaymentMethodToken    string     `gorm:"type:varchar(255)"`
	GatewayScheduleId     string     `gorm:"type:varchar(255)"`
	Version               int64      `gorm:"not null;default:1"`
	CreatedAt             time.Time  `gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
