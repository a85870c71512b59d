package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/ledger"
	"github.com/srizd/clinishare/backend/internal/notify"
)

// RewardSummary aggregates a single recipient's rewards.
type RewardSummary struct {
	Records   []domain.RewardRecord `json:"records"`
	Earned    domain.Octas          `json:"earned"`
	Pending   domain.Octas          `json:"pending"`
	HasFailed bool                  `json:"hasFailed"`
}

// RewardService records rewards owed by the review workflow and settles
// them against the ledger. Recording and settling are separate steps: an
// approval never blocks on a chain transaction.
type RewardService struct {
	store    docstore.Store
	chain    ledger.Client
	notifier notify.Notifier
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewRewardService constructs a RewardService. notifier defaults to a no-op.
func NewRewardService(store docstore.Store, chain ledger.Client, notifier notify.Notifier, logger *slog.Logger) *RewardService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardService{
		store:    store,
		chain:    chain,
		notifier: notifier,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *RewardService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Record enqueues a pending reward. The document key is derived from the
// recipient and cause, so recording the same reward twice returns
// docstore.ErrDuplicateReward and leaves the first record untouched.
func (s *RewardService) Record(ctx context.Context, rewardType domain.RewardType, recipient, cause, verifiedBy string, amount domain.Octas) (domain.RewardRecord, error) {
	recipient = normalizeWalletAddress(recipient)
	rec := domain.RewardRecord{
		ID:         domain.RewardKey(recipient, cause),
		Type:       rewardType,
		Amount:     amount,
		Recipient:  recipient,
		Cause:      cause,
		VerifiedBy: normalizeWalletAddress(verifiedBy),
		Status:     domain.RewardPending,
		CreatedAt:  s.nowFn().UTC(),
	}
	if err := s.store.InsertReward(ctx, rec); err != nil {
		return domain.RewardRecord{}, err
	}
	return rec, nil
}

// UserRewards returns the recipient's rewards with totals.
func (s *RewardService) UserRewards(ctx context.Context, address string) (RewardSummary, error) {
	records, err := s.store.ListRewardsByRecipient(ctx, normalizeWalletAddress(address))
	if err != nil {
		return RewardSummary{}, err
	}

	summary := RewardSummary{Records: records}
	for _, rec := range records {
		switch rec.Status {
		case domain.RewardCompleted:
			summary.Earned += rec.Amount
		case domain.RewardPending:
			summary.Pending += rec.Amount
		case domain.RewardFailed:
			summary.HasFailed = true
		}
	}
	return summary, nil
}

// HasPending reports whether the recipient has unsettled rewards.
func (s *RewardService) HasPending(ctx context.Context, address string) (bool, error) {
	summary, err := s.UserRewards(ctx, address)
	if err != nil {
		return false, err
	}
	return summary.Pending > 0, nil
}

// Stats returns platform-wide reward counters.
func (s *RewardService) Stats(ctx context.Context) (domain.RewardStats, error) {
	return s.store.RewardStats(ctx)
}

// Balance returns the recipient's on-chain balance. A wallet without a
// CoinStore resource is read through the coin view function instead, which
// also covers accounts holding coin only as a fungible asset.
func (s *RewardService) Balance(ctx context.Context, address string) (domain.Octas, error) {
	address = normalizeWalletAddress(address)
	balance, err := s.chain.AccountBalance(ctx, address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return s.viewBalance(ctx, address)
	}
	return balance, err
}

func (s *RewardService) viewBalance(ctx context.Context, address string) (domain.Octas, error) {
	out, err := s.chain.View(ctx, ledger.BalanceViewFunction, []string{ledger.AptosCoinType}, []any{address})
	if err != nil {
		return 0, fmt.Errorf("view balance for %s: %w", address, err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	raw, ok := out[0].(string)
	if !ok {
		return 0, fmt.Errorf("unexpected balance view result %T", out[0])
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return domain.Octas(value), nil
}

// ListPending returns all rewards awaiting settlement.
func (s *RewardService) ListPending(ctx context.Context) ([]domain.RewardRecord, error) {
	return s.store.ListRewardsByStatus(ctx, domain.RewardPending)
}

// Settle pays out one pending reward. A transfer that fails marks the
// reward failed with the reason; both outcomes are terminal. Settling a
// reward another settler already claimed is a no-op.
func (s *RewardService) Settle(ctx context.Context, reward domain.RewardRecord) error {
	hash, err := s.chain.TransferAPT(ctx, reward.Recipient, reward.Amount)
	if err != nil {
		return s.markFailed(ctx, reward, fmt.Errorf("submit transfer: %w", err))
	}

	if _, err := s.chain.WaitForTransaction(ctx, hash); err != nil {
		return s.markFailed(ctx, reward, fmt.Errorf("transaction %s: %w", hash, err))
	}

	settled, err := s.store.SettleReward(ctx, reward.ID, domain.RewardCompleted, hash, "", s.nowFn().UTC())
	if errors.Is(err, docstore.ErrNotPending) {
		s.logger.Warn("reward settled concurrently", "reward", reward.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark reward %s completed: %w", reward.ID, err)
	}

	s.logger.Info("reward settled",
		"reward", settled.ID,
		"recipient", settled.Recipient,
		"amount", settled.Amount.String(),
		"tx", hash,
	)
	s.notifySettled(ctx, settled)
	return nil
}

func (s *RewardService) markFailed(ctx context.Context, reward domain.RewardRecord, cause error) error {
	if ctx.Err() != nil {
		// Shutdown, not a settlement failure: leave the reward pending.
		return ctx.Err()
	}

	if _, err := s.store.SettleReward(ctx, reward.ID, domain.RewardFailed, "", cause.Error(), s.nowFn().UTC()); err != nil && !errors.Is(err, docstore.ErrNotPending) {
		return fmt.Errorf("mark reward %s failed: %w", reward.ID, err)
	}
	return fmt.Errorf("settle reward %s: %w", reward.ID, cause)
}

func (s *RewardService) notifySettled(ctx context.Context, reward domain.RewardRecord) {
	profile, err := s.store.GetProfile(ctx, reward.Recipient)
	if err != nil || profile.Email == "" {
		return
	}
	if err := s.notifier.RewardSettled(ctx, profile.Email, reward); err != nil {
		s.logger.Warn("reward settlement notification failed", "reward", reward.ID, "error", err)
	}
}
