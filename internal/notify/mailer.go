package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/srizd/clinishare/backend/internal/domain"
)

// Mailer delivers notifications over SMTP. Reward settlements carry a PDF
// statement attachment.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer builds an SMTP-backed Notifier.
func NewMailer(host string, port int, from, password string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, from, password),
		from:   from,
	}
}

func (m *Mailer) ReviewOutcome(ctx context.Context, email, subject, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", message)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send review outcome to %s: %w", email, err)
	}
	return nil
}

func (m *Mailer) RewardSettled(ctx context.Context, email string, reward domain.RewardRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	statement, err := RewardStatement(reward)
	if err != nil {
		return fmt.Errorf("render reward statement: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Your data contribution reward has been settled")
	msg.SetBody("text/plain", fmt.Sprintf(
		"A reward of %s has been transferred to %s.\nTransaction: %s\n",
		reward.Amount, reward.Recipient, reward.TransactionHash,
	))
	msg.Attach("reward-statement.pdf", gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(statement))
		return err
	}))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send reward statement to %s: %w", email, err)
	}
	return nil
}
