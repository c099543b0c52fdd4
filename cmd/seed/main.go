package main

import (
	"log"
	"os"

	"subscription-billing-be/internal/model"
	"subscription-billing-be/pkg/database"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeds the plan catalog. Safe to run repeatedly: plans are upserted by
// their external id.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	seedPlans(db)
	log.Println("✅ Seeding completed")
}

func seedPlans(db *gorm.DB) {
	plans := []model.Plan{
		{
			ExternalId:    "basic",
			Name:          "Basic",
			Description:   "Entry tier for individual use",
			MonthlyAmount: 9.90,
			BillingCycle:  "monthly",
			IsActive:      true,
			SortOrder:     1,
		},
		{
			ExternalId:    "pro",
			Name:          "Pro",
			Description:   "Full feature set for professionals",
			MonthlyAmount: 29.90,
			BillingCycle:  "monthly",
			IsActive:      true,
			SortOrder:     2,
		},
		{
			ExternalId:    "team",
			Name:          "Team",
			Description:   "Shared workspace for small teams",
			MonthlyAmount: 99.00,
			BillingCycle:  "monthly",
			IsActive:      true,
			SortOrder:     3,
		},
	}

	for _, plan := range plans {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "monthly_amount", "billing_cycle", "is_active", "sort_order"}),
		}).Create(&plan).Error
		if err != nil {
			log.Printf("Warn: Failed to seed plan %s: %v", plan.ExternalId, err)
			continue
		}
		log.Printf("Seeded plan: %s", plan.ExternalId)
	}
}
