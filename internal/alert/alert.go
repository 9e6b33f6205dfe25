// Package alert notifies operators about verifications that had to be rolled back.
package alert

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/config"
	"github.com/punchamoorthee/payledger/internal/domain"
	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends one email per failed fulfillment.
type Mailer struct {
	dialer dialer
	from   string
	to     string
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

func (m *Mailer) FulfillmentFailed(ctx context.Context, t domain.Transaction, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", fmt.Sprintf("Fulfillment failed for transaction %d", t.ID))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Transaction %d (user %d, %s %s %s) could not be fulfilled and is still pending verification.\n\nCause: %v\n",
		t.ID, t.UserID, t.FulfillmentKind(), t.Amount.StringFixed(2), t.Currency, cause))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert for transaction %d: %w", t.ID, err)
	}
	return nil
}

// Nop discards alerts. It is used when SMTP is not configured.
type Nop struct{}

func (Nop) FulfillmentFailed(context.Context, domain.Transaction, error) error { return nil }
