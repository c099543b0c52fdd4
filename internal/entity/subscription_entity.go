package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// IsTerminal reports whether the status allows no further transitions.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

// Months returns the month multiplier for the cycle. Zero for unknown cycles.
func (c BillingCycle) Months() int {
	switch c {
	case BillingCycleMonthly:
		return 1
	case BillingCycleQuarterly:
		return 3
	case BillingCycleYearly:
		return 12
	default:
		return 0
	}
}

func (c BillingCycle) Valid() bool {
	return c.Months() > 0
}

// Subscription is the aggregate root for a customer's recurring purchase.
// Lifecycle transitions live here as pure methods so they can be tested
// without any I/O; persistence and event publishing are the caller's job.
type Subscription struct {
	Id                    uuid.UUID
	CustomerId            uuid.UUID
	CustomerEmail         string
	PlanId                string
	BillingCycle          BillingCycle
	MonthlyAmount         float64
	Status                SubscriptionStatus
	StartDate             time.Time
	NextBillingDate       time.Time
	EndDate               *time.Time
	GracePeriodEnd        *time.Time
	FailedPaymentAttempts int
	PaymentMethodToken    string
	GatewayScheduleId     string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewSubscription builds a pending subscription. The first local billing date
// is one cycle after the start date; the charge covering the first cycle is
// scheduled with the gateway at creation time.
func NewSubscription(customerId uuid.UUID, customerEmail, planId string, cycle BillingCycle, monthlyAmount float64, startDate time.Time, endDate *time.Time, paymentMethodToken string) *Subscription {
	now := time.Now().UTC()
	return &Subscription{
		Id:                 uuid.New(),
		CustomerId:         customerId,
		CustomerEmail:      customerEmail,
		PlanId:             planId,
		BillingCycle:       cycle,
		MonthlyAmount:      monthlyAmount,
		Status:             SubscriptionStatusPending,
		StartDate:          startDate,
		NextBillingDate:    startDate.AddDate(0, cycle.Months(), 0),
		EndDate:            endDate,
		PaymentMethodToken: paymentMethodToken,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ChargeAmount is the amount billed per cycle: monthly amount times the
// cycle's month multiplier.
func (s *Subscription) ChargeAmount() float64 {
	return s.MonthlyAmount * float64(s.BillingCycle.Months())
}

func (s *Subscription) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Activate moves a pending or past-due subscription to active and clears the
// failure bookkeeping.
func (s *Subscription) Activate() error {
	if s.Status != SubscriptionStatusPending && s.Status != SubscriptionStatusPastDue {
		return newInvalidTransition("activate", s.Status)
	}
	s.Status = SubscriptionStatusActive
	s.FailedPaymentAttempts = 0
	s.GracePeriodEnd = nil
	s.touch()
	return nil
}

// RecordSuccessfulCharge applies a successful billing attempt. The next
// billing date advances one cycle from the charge date, not from the stale
// next billing date, so late job runs do not accumulate drift.
func (s *Subscription) RecordSuccessfulCharge(chargeDate time.Time) error {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusPastDue {
		return newInvalidTransition("record successful charge for", s.Status)
	}
	s.FailedPaymentAttempts = 0
	s.GracePeriodEnd = nil
	s.NextBillingDate = chargeDate.AddDate(0, s.BillingCycle.Months(), 0)
	s.Status = SubscriptionStatusActive
	s.touch()
	return nil
}

// RecordFailedCharge applies a failed billing attempt. Below maxAttempts the
// subscription goes past due and the grace window opens (only once per
// window, so repeated failures do not extend it). Reaching maxAttempts
// cancels immediately. The returned flag reports exhaustion.
func (s *Subscription) RecordFailedCharge(failedAt time.Time, maxAttempts, gracePeriodDays int) (bool, error) {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusPastDue {
		return false, newInvalidTransition("record failed charge for", s.Status)
	}
	s.FailedPaymentAttempts++
	if s.FailedPaymentAttempts >= maxAttempts {
		s.Status = SubscriptionStatusCancelled
		s.GracePeriodEnd = nil
		s.touch()
		return true, nil
	}
	s.Status = SubscriptionStatusPastDue
	if s.GracePeriodEnd == nil {
		end := failedAt.AddDate(0, 0, gracePeriodDays)
		s.GracePeriodEnd = &end
	}
	s.touch()
	return false, nil
}

// ExpireGracePeriod cancels a past-due subscription whose grace window has
// closed. It reports whether the subscription changed; anything else is a
// no-op, never an error, so the sweep can run over a mixed candidate set.
func (s *Subscription) ExpireGracePeriod(today time.Time) bool {
	if s.Status != SubscriptionStatusPastDue || s.GracePeriodEnd == nil {
		return false
	}
	if !s.GracePeriodEnd.Before(today) {
		return false
	}
	s.Status = SubscriptionStatusCancelled
	s.GracePeriodEnd = nil
	s.touch()
	return true
}

// Pause suspends an active subscription.
func (s *Subscription) Pause() error {
	if s.Status != SubscriptionStatusActive {
		return newInvalidTransition("pause", s.Status)
	}
	s.Status = SubscriptionStatusPaused
	s.touch()
	return nil
}

// Resume reactivates a paused subscription.
func (s *Subscription) Resume() error {
	if s.Status != SubscriptionStatusPaused {
		return newInvalidTransition("resume", s.Status)
	}
	s.Status = SubscriptionStatusActive
	s.touch()
	return nil
}

// Cancel moves any non-terminal subscription to cancelled. Cancelling an
// already cancelled subscription is a no-op; cancelling an expired one is
// rejected.
func (s *Subscription) Cancel() error {
	if s.Status == SubscriptionStatusCancelled {
		return nil
	}
	if s.Status == SubscriptionStatusExpired {
		return newInvalidTransition("cancel", s.Status)
	}
	s.Status = SubscriptionStatusCancelled
	s.GracePeriodEnd = nil
	s.touch()
	return nil
}

// ChangePaymentMethod swaps the stored payment token. Terminal subscriptions
// have nothing left to charge, so the swap is rejected there.
func (s *Subscription) ChangePaymentMethod(token string) error {
	if s.Status.IsTerminal() {
		return newInvalidTransition("change payment method for", s.Status)
	}
	s.PaymentMethodToken = token
	s.touch()
	return nil
}

// Expire ends a time-boxed subscription whose end date has passed. Reports
// whether the subscription changed.
func (s *Subscription) Expire(today time.Time) bool {
	if s.Status.IsTerminal() || s.EndDate == nil {
		return false
	}
	if s.EndDate.After(today) {
		return false
	}
	s.Status = SubscriptionStatusExpired
	s.GracePeriodEnd = nil
	s.touch()
	return true
}
