// FILE: internal/dto/plan_dto.go
package dto

import "github.com/google/uuid"

type PlanResponse struct {
	Id            uuid.UUID `json:"id"`
	ExternalId    string    `json:"plan_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	MonthlyAmount float64   `json:"monthly_amount"`
	BillingCycle  string    `json:"billing_cycle"`
}
