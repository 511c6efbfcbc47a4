package billing

import (
	"fmt"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/internal/pkg/mail"
)

// Notifier delivers billing notifications to users. Implementations are
// invoked fire-and-forget; delivery failure never fails webhook processing.
type Notifier interface {
	NotifyPaymentFailed(user *models.User, transactionID string) error
}

type smtpNotifier struct{}

// NewSMTPNotifier returns a Notifier that sends email via the SMTP mailer.
func NewSMTPNotifier() Notifier {
	return &smtpNotifier{}
}

func (n *smtpNotifier) NotifyPaymentFailed(user *models.User, transactionID string) error {
	subject := "Payment failed for your BlockForge subscription"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>We could not collect the latest payment for your subscription (reference %s). "+
			"Please update your payment method to keep your plan active.</p>",
		user.Name, transactionID,
	)
	return mail.SendMail(user.Email, subject, body)
}
