package model

import (
	"time"

	"github.com/google/uuid"
)

type Plan struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ExternalId    string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name          string    `gorm:"type:varchar(255);not null"`
	Description   string    `gorm:"type:text"`
	MonthlyAmount float64   `gorm:"type:decimal(10,2);not null"`
	BillingCycle  string    `gorm:"type:varchar(20);not null"`
	IsActive      bool      `gorm:"default:true"`
	SortOrder     int       `gorm:"default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Plan) TableName() string {
	return "plans"
}
