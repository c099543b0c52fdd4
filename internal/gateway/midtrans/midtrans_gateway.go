package midtrans

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"subscription-billing-be/internal/gateway"
	"subscription-billing-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

const startTimeLayout = "2006-01-02 15:04:05 -0700"

// Gateway implements gateway.BillingGateway on the Midtrans Core API. The
// recurring schedule uses the subscription API; due charges are executed
// directly with the stored card token.
type Gateway struct {
	client coreapi.Client
	log    logger.ILogger
}

func NewGateway(serverKey string, isProduction bool, log logger.ILogger) *Gateway {
	env := midtrans.Sandbox
	if isProduction {
		env = midtrans.Production
	}
	var client coreapi.Client
	client.New(serverKey, env)
	return &Gateway{client: client, log: log}
}

var _ gateway.BillingGateway = (*Gateway)(nil)

func (g *Gateway) ScheduleBilling(ctx context.Context, req gateway.BillingScheduleRequest) (*gateway.BillingScheduleResult, error) {
	subReq := &coreapi.SubscriptionReq{
		Name:        fmt.Sprintf("sub-%s", req.SubscriptionId),
		Amount:      int64(req.Amount),
		Currency:    "IDR",
		PaymentType: coreapi.PaymentTypeCreditCard,
		Token:       req.PaymentMethodToken,
		Schedule: coreapi.ScheduleDetails{
			Interval:     req.Cycle.Months(),
			IntervalUnit: "month",
			StartTime:    req.FirstBillingDate.Format(startTimeLayout),
		},
		CustomerDetails: &midtrans.CustomerDetails{
			Email: req.CustomerEmail,
		},
	}

	resp, midErr := g.client.CreateSubscription(subReq)
	if midErr != nil {
		g.log.Warn("MidtransGateway", "schedule rejected", map[string]interface{}{
			"subscription_id": req.SubscriptionId.String(),
			"error":           midErr.GetMessage(),
		})
		return &gateway.BillingScheduleResult{Success: false, Message: midErr.GetMessage()}, nil
	}

	g.log.Info("MidtransGateway", "billing schedule created", map[string]interface{}{
		"subscription_id":      req.SubscriptionId.String(),
		"gateway_schedule_id":  resp.ID,
		"gateway_schedule_sts": resp.Status,
	})
	return &gateway.BillingScheduleResult{Success: true, Message: resp.Status, ScheduleId: resp.ID}, nil
}

func (g *Gateway) UpdateBilling(ctx context.Context, req gateway.BillingUpdateRequest) (*gateway.BillingScheduleResult, error) {
	subReq := &coreapi.SubscriptionReq{
		Name:     fmt.Sprintf("sub-%s", req.SubscriptionId),
		Currency: "IDR",
	}
	if req.NewAmount != nil {
		subReq.Amount = int64(*req.NewAmount)
	}
	if req.NewCycle != nil {
		subReq.Schedule = coreapi.ScheduleDetails{
			Interval:     req.NewCycle.Months(),
			IntervalUnit: "month",
		}
	}
	if req.NewPaymentMethodToken != nil {
		subReq.Token = *req.NewPaymentMethodToken
	}

	resp, midErr := g.client.UpdateSubscription(req.GatewayScheduleId, subReq)
	if midErr != nil {
		return &gateway.BillingScheduleResult{Success: false, Message: midErr.GetMessage()}, nil
	}
	return &gateway.BillingScheduleResult{Success: true, Message: resp.StatusMessage}, nil
}

func (g *Gateway) ExecuteCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.BillingResult, error) {
	chargeReq := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderId(req.SubscriptionId, req.IsRetry),
			GrossAmt: int64(req.Amount),
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: req.PaymentMethodToken,
		},
	}

	resp, midErr := g.client.ChargeTransaction(chargeReq)
	if midErr != nil {
		return &gateway.BillingResult{
			Success:   false,
			Message:   midErr.GetMessage(),
			ErrorCode: strconv.Itoa(midErr.StatusCode),
		}, nil
	}

	result := &gateway.BillingResult{
		TransactionId: resp.TransactionID,
		Message:       resp.StatusMessage,
		ErrorCode:     resp.StatusCode,
		RawResponse: map[string]interface{}{
			"transaction_status": resp.TransactionStatus,
			"status_code":        resp.StatusCode,
			"fraud_status":       resp.FraudStatus,
			"order_id":           resp.OrderID,
		},
	}
	if amt, err := strconv.ParseFloat(resp.GrossAmount, 64); err == nil {
		result.ChargedAmount = amt
	}

	switch resp.TransactionStatus {
	case "capture", "settlement":
		result.Success = true
	default:
		result.Success = false
	}
	return result, nil
}

func (g *Gateway) DisableBilling(ctx context.Context, subscriptionId uuid.UUID, gatewayScheduleId string) error {
	_, midErr := g.client.DisableSubscription(gatewayScheduleId)
	if midErr != nil {
		return fmt.Errorf("disable gateway schedule for %s: %s", subscriptionId, midErr.GetMessage())
	}
	return nil
}

// orderId must differ per attempt or the provider rejects the retry as a
// duplicate order.
func orderId(subscriptionId uuid.UUID, isRetry bool) string {
	suffix := time.Now().UTC().Format("20060102150405")
	if isRetry {
		return fmt.Sprintf("%s-retry-%s", subscriptionId, suffix)
	}
	return fmt.Sprintf("%s-%s", subscriptionId, suffix)
}
