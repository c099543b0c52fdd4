package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type BillingAttempt struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubscriptionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Amount         float64        `gorm:"type:decimal(10,2);not null"`
	Status         string         `gorm:"type:varchar(20);not null"`
	IsRetry        bool           `gorm:"not null;default:false"`
	TransactionId  string         `gorm:"type:varchar(255)"`
	ErrorCode      string         `gorm:"type:varchar(100)"`
	ErrorMessage   string         `gorm:"type:text"`
	GatewayPayload datatypes.JSON `gorm:"type:jsonb"`
	AttemptedAt    time.Time      `gorm:"not null;index"`
}

func (BillingAttempt) TableName() string {
	return "billing_attempts"
}
