package constant

const (
	// Cancellation reasons carried on SUBSCRIPTION_CANCELLED events.
	CancelReasonCustomerRequest   = "customer_request"
	CancelReasonAttemptsExhausted = "payment_attempts_exhausted"
	CancelReasonGraceExpired      = "grace_period_expired"
	CancelReasonScheduleFailed    = "billing_schedule_failed"

	// Internal watermill topic feeding the dunning notification consumer.
	DunningTopicName = "billing.dunning"

	// Scheduler job names, also used as distributed lock keys.
	JobDailyBilling  = "daily-billing"
	JobRetryPayments = "retry-failed-payments"
	JobGraceSweep    = "expired-grace-period"
)
