package entity

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrPlanNotFound             = errors.New("plan not found")
	ErrDuplicateSubscription    = errors.New("an active subscription already exists for this customer and plan")
	ErrSubscriptionLimitReached = errors.New("customer has reached the maximum number of active subscriptions")
	ErrVersionConflict          = errors.New("subscription was modified concurrently")
)

// InvalidTransitionError is returned when a lifecycle operation is attempted
// from a status that does not allow it. Callers should treat it as a logic
// bug, never as a retryable condition.
type InvalidTransitionError struct {
	Op   string
	From SubscriptionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s subscription in status %q", e.Op, e.From)
}

func newInvalidTransition(op string, from SubscriptionStatus) error {
	return &InvalidTransitionError{Op: op, From: from}
}

// IsInvalidTransition reports whether err is a state machine rejection.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
