package service

import (
	"context"
	"errors"
	"testing"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/ledger"
)

func newRewardFixture(t *testing.T) (*docstore.MemoryStore, *ledger.MemoryClient, *RewardService) {
	t.Helper()
	store := docstore.NewMemoryStore()
	chain := ledger.NewMemoryClient()
	rewards := NewRewardService(store, chain, nil, discardLogger())
	rewards.WithClock(testClock)
	return store, chain, rewards
}

func TestRecordRewardDeterministicKey(t *testing.T) {
	_, _, rewards := newRewardFixture(t)
	ctx := context.Background()

	rec, err := rewards.Record(ctx, domain.RewardPatientVerification, patientAddr, domain.PatientRewardCause(), adminAddr, domain.PatientRewardOctas)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.ID != patientAddr+"_patient_verification" {
		t.Fatalf("unexpected reward key %s", rec.ID)
	}
	if rec.Status != domain.RewardPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}

	if _, err := rewards.Record(ctx, domain.RewardPatientVerification, patientAddr, domain.PatientRewardCause(), adminAddr, domain.PatientRewardOctas); !errors.Is(err, docstore.ErrDuplicateReward) {
		t.Fatalf("expected ErrDuplicateReward, got %v", err)
	}
}

func TestSettleCompletesReward(t *testing.T) {
	store, chain, rewards := newRewardFixture(t)
	ctx := context.Background()

	rec, err := rewards.Record(ctx, domain.RewardPatientVerification, patientAddr, domain.PatientRewardCause(), adminAddr, domain.PatientRewardOctas)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := rewards.Settle(ctx, rec); err != nil {
		t.Fatalf("settle: %v", err)
	}

	settled, err := store.GetReward(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if settled.Status != domain.RewardCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
	if settled.TransactionHash == "" {
		t.Fatal("expected transaction hash to be stamped")
	}

	transfers := chain.Transfers()
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	if transfers[0].Recipient != patientAddr || transfers[0].Amount != domain.PatientRewardOctas {
		t.Fatalf("unexpected transfer %+v", transfers[0])
	}
}

func TestSettleTransferFailureIsTerminal(t *testing.T) {
	store, chain, rewards := newRewardFixture(t)
	ctx := context.Background()
	chain.WithError(errors.New("insufficient gas"))

	rec, err := rewards.Record(ctx, domain.RewardProfessionalResearch, authorAddr, "cause-1", adminAddr, domain.ProfessionalRewardOctas)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := rewards.Settle(ctx, rec); err == nil {
		t.Fatal("expected settle error")
	}

	failed, err := store.GetReward(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if failed.Status != domain.RewardFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.FailureReason == "" {
		t.Fatal("expected failure reason to be recorded")
	}
}

func TestSettleCancelledContextLeavesPending(t *testing.T) {
	store, chain, rewards := newRewardFixture(t)
	chain.WithError(errors.New("connection reset"))

	rec, err := rewards.Record(context.Background(), domain.RewardPatientVerification, patientAddr, domain.PatientRewardCause(), adminAddr, domain.PatientRewardOctas)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rewards.Settle(ctx, rec); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	pending, err := store.GetReward(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if pending.Status != domain.RewardPending {
		t.Fatalf("expected reward left pending for retry, got %s", pending.Status)
	}
}

func TestUserRewardsTotals(t *testing.T) {
	store, _, rewards := newRewardFixture(t)
	ctx := context.Background()

	seed := []domain.RewardRecord{
		{ID: "a", Recipient: patientAddr, Amount: 10_000_000, Status: domain.RewardCompleted},
		{ID: "b", Recipient: patientAddr, Amount: 20_000_000, Status: domain.RewardPending},
		{ID: "c", Recipient: patientAddr, Amount: 10_000_000, Status: domain.RewardFailed},
		{ID: "d", Recipient: authorAddr, Amount: 20_000_000, Status: domain.RewardPending},
	}
	for _, rec := range seed {
		if err := store.InsertReward(ctx, rec); err != nil {
			t.Fatalf("seed %s: %v", rec.ID, err)
		}
	}

	summary, err := rewards.UserRewards(ctx, patientAddr)
	if err != nil {
		t.Fatalf("user rewards: %v", err)
	}
	if summary.Earned != 10_000_000 {
		t.Fatalf("expected earned 10000000, got %d", summary.Earned)
	}
	if summary.Pending != 20_000_000 {
		t.Fatalf("expected pending 20000000, got %d", summary.Pending)
	}
	if !summary.HasFailed {
		t.Fatal("expected HasFailed to be set")
	}
	if len(summary.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(summary.Records))
	}
}

func TestBalanceMissingAccountIsZero(t *testing.T) {
	_, chain, rewards := newRewardFixture(t)
	ctx := context.Background()

	balance, err := rewards.Balance(ctx, patientAddr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}

	chain.SetBalance(patientAddr, domain.OctasPerAPT)
	balance, err = rewards.Balance(ctx, patientAddr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != domain.OctasPerAPT {
		t.Fatalf("expected 1 APT, got %d octas", balance)
	}
}

func TestBalanceUnregisteredAccountReadThroughView(t *testing.T) {
	_, chain, rewards := newRewardFixture(t)
	ctx := context.Background()

	// The wallet holds coin but never registered a CoinStore, so the
	// resource read 404s and only the view function answers.
	chain.SetUnregisteredBalance(patientAddr, 2*domain.OctasPerAPT)

	balance, err := rewards.Balance(ctx, patientAddr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 2*domain.OctasPerAPT {
		t.Fatalf("expected 2 APT, got %d octas", balance)
	}
}
