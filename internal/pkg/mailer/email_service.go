// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendPaymentFailed(toEmail, planName string, amount float64, attempt, maxAttempts int, graceDeadline *time.Time) error
	SendSubscriptionCancelled(toEmail, planName, reason string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

func (s *emailService) SendPaymentFailed(toEmail, planName string, amount float64, attempt, maxAttempts int, graceDeadline *time.Time) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Payment Failed for Your Subscription")

	deadlineNote := "We will retry the charge automatically."
	if graceDeadline != nil {
		deadlineNote = fmt.Sprintf("Please update your payment method before <strong>%s</strong> to keep your subscription active.", graceDeadline.Format("January 2, 2006"))
	}

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Payment Failed</h2>
			<p>We could not charge <strong>%.2f</strong> for your <strong>%s</strong> subscription.</p>
			<p>This was attempt %d of %d.</p>
			<p>%s</p>
			<p>If you believe this is a mistake, please contact support.</p>
		</div>
	`, amount, planName, attempt, maxAttempts, deadlineNote)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send payment failed notice to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Payment failed notice sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendSubscriptionCancelled(toEmail, planName, reason string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your Subscription Has Been Cancelled")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Subscription Cancelled</h2>
			<p>Your <strong>%s</strong> subscription has been cancelled.</p>
			<p>Reason: %s</p>
			<p>You can resubscribe at any time from your account page.</p>
		</div>
	`, planName, humanizeReason(reason))

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send cancellation notice to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Cancellation notice sent to %s\n", toEmail)
	return nil
}

func humanizeReason(reason string) string {
	switch reason {
	case "payment_attempts_exhausted":
		return "we were unable to process your payment after several attempts"
	case "grace_period_expired":
		return "the grace period for your unpaid invoice has expired"
	case "customer_request":
		return "you requested the cancellation"
	default:
		return reason
	}
}
