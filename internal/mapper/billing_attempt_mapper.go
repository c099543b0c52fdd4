package mapper

import (
	"encoding/json"

	"subscription-billing-be/internal/entity"
	"subscription-billing-be/internal/model"

	"gorm.io/datatypes"
)

type BillingAttemptMapper struct{}

func NewBillingAttemptMapper() *BillingAttemptMapper {
	return &BillingAttemptMapper{}
}

func (m *BillingAttemptMapper) ToEntity(a *model.BillingAttempt) *entity.BillingAttempt {
	if a == nil {
		return nil
	}
	var payload map[string]interface{}
	if len(a.GatewayPayload) > 0 {
		// Unmarshal errors leave the payload nil; the audit row is still usable.
		_ = json.Unmarshal(a.GatewayPayload, &payload)
	}
	return &entity.BillingAttempt{
		Id:             a.Id,
		SubscriptionId: a.SubscriptionId,
		Amount:         a.Amount,
		Status:         entity.BillingAttemptStatus(a.Status),
		IsRetry:        a.IsRetry,
		TransactionId:  a.TransactionId,
		ErrorCode:      a.ErrorCode,
		ErrorMessage:   a.ErrorMessage,
		GatewayPayload: payload,
		AttemptedAt:    a.AttemptedAt,
	}
}

func (m *BillingAttemptMapper) ToModel(a *entity.BillingAttempt) *model.BillingAttempt {
	if a == nil {
		return nil
	}
	var payload datatypes.JSON
	if a.GatewayPayload != nil {
		if raw, err := json.Marshal(a.GatewayPayload); err == nil {
			payload = raw
		}
	}
	return &model.BillingAttempt{
		Id:             a.Id,
		SubscriptionId: a.SubscriptionId,
		Amount:         a.Amount,
		Status:         string(a.Status),
		IsRetry:        a.IsRetry,
		TransactionId:  a.TransactionId,
		ErrorCode:      a.ErrorCode,
		ErrorMessage:   a.ErrorMessage,
		GatewayPayload: payload,
		AttemptedAt:    a.AttemptedAt,
	}
}
