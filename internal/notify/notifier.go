package notify

import (
	"context"

	"github.com/srizd/clinishare/backend/internal/domain"
)

// Notifier delivers review and settlement outcomes to participants.
// Delivery is best effort: callers log failures but never roll back the
// state change that triggered the notification.
type Notifier interface {
	ReviewOutcome(ctx context.Context, email, subject, message string) error
	RewardSettled(ctx context.Context, email string, reward domain.RewardRecord) error
}

// Noop discards all notifications. Used when SMTP is not configured and in
// tests.
type Noop struct{}

func (Noop) ReviewOutcome(context.Context, string, string, string) error {
	return nil
}

func (Noop) RewardSettled(context.Context, string, domain.RewardRecord) error {
	return nil
}
