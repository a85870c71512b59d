package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/ledger"
)

const (
	adminAddr   = "0x00000000000000000000000000000000000000000000000000000000000000ad"
	doctorAddr  = "0x00000000000000000000000000000000000000000000000000000000000000d0"
	patientAddr = "0x00000000000000000000000000000000000000000000000000000000000000fe"
	authorAddr  = "0x00000000000000000000000000000000000000000000000000000000000000ab"
)

var testClock = func() time.Time { return time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reviewFixture struct {
	store   *docstore.MemoryStore
	chain   *ledger.MemoryClient
	rewards *RewardService
	reviews *ReviewService
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()

	store := docstore.NewMemoryStore()
	chain := ledger.NewMemoryClient()
	logger := discardLogger()

	rewards := NewRewardService(store, chain, nil, logger)
	rewards.WithClock(testClock)

	policy := NewReviewPolicy(store, []string{adminAddr})
	reviews := NewReviewService(store, policy, rewards, nil, nil, logger)
	reviews.WithClock(testClock)

	return &reviewFixture{store: store, chain: chain, rewards: rewards, reviews: reviews}
}

func adminSession() Session {
	return Session{Address: adminAddr, Role: domain.RoleExplorer}
}

func seedVerification(t *testing.T, store *docstore.MemoryStore, address string, role domain.Role) {
	t.Helper()
	ctx := context.Background()
	if _, _, err := store.EnsureProfile(ctx, address, testClock()); err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if err := store.PutVerification(ctx, domain.VerificationRequest{
		Address: address, Role: role, Status: domain.StatusPending, SubmittedAt: testClock(),
	}); err != nil {
		t.Fatalf("seed verification: %v", err)
	}
}

func TestReviewVerificationApproveStampsProfile(t *testing.T) {
	fx := newReviewFixture(t)
	seedVerification(t, fx.store, doctorAddr, domain.RoleDoctor)

	req, err := fx.reviews.ReviewVerification(context.Background(), adminSession(), doctorAddr, true, "credentials verified against registry")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if req.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", req.Status)
	}
	if req.ReviewedBy != adminAddr {
		t.Fatalf("expected reviewer %s, got %s", adminAddr, req.ReviewedBy)
	}

	profile, err := fx.store.GetProfile(context.Background(), doctorAddr)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !profile.IsVerifiedDoctor() {
		t.Fatalf("expected verified doctor, got role=%s status=%s", profile.Role, profile.VerificationStatus)
	}
}

func TestReviewVerificationRequiresNotes(t *testing.T) {
	fx := newReviewFixture(t)
	seedVerification(t, fx.store, doctorAddr, domain.RoleDoctor)

	for _, approve := range []bool{true, false} {
		if _, err := fx.reviews.ReviewVerification(context.Background(), adminSession(), doctorAddr, approve, "  "); !errors.Is(err, ErrNotesRequired) {
			t.Fatalf("approve=%v: expected ErrNotesRequired, got %v", approve, err)
		}
	}

	req, err := fx.reviews.ReviewVerification(context.Background(), adminSession(), doctorAddr, false, "credentials unverifiable")
	if err != nil {
		t.Fatalf("review with notes: %v", err)
	}
	if req.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", req.Status)
	}
}

func TestReviewVerificationRequiresAdmin(t *testing.T) {
	fx := newReviewFixture(t)
	seedVerification(t, fx.store, doctorAddr, domain.RoleDoctor)

	session := Session{Address: doctorAddr, Role: domain.RoleDoctor}
	if _, err := fx.reviews.ReviewVerification(context.Background(), session, doctorAddr, true, "self approval"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestReviewVerificationOnlyOnce(t *testing.T) {
	fx := newReviewFixture(t)
	seedVerification(t, fx.store, doctorAddr, domain.RoleDoctor)
	ctx := context.Background()

	if _, err := fx.reviews.ReviewVerification(ctx, adminSession(), doctorAddr, true, "credentials verified"); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := fx.reviews.ReviewVerification(ctx, adminSession(), doctorAddr, false, "changed my mind"); !errors.Is(err, docstore.ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}
}

func seedPatientRecord(t *testing.T, store *docstore.MemoryStore, address string) {
	t.Helper()
	if err := store.PutPatientRecord(context.Background(), domain.PatientRecord{
		Address: address, Age: 51, Status: domain.PatientPending, UploadedAt: testClock(),
	}); err != nil {
		t.Fatalf("seed patient record: %v", err)
	}
}

func TestReviewPatientRecordApproveIssuesReward(t *testing.T) {
	fx := newReviewFixture(t)
	seedPatientRecord(t, fx.store, patientAddr)
	ctx := context.Background()

	rec, err := fx.reviews.ReviewPatientRecord(ctx, adminSession(), patientAddr, true, "prescription is consistent")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if rec.Status != domain.PatientVerified {
		t.Fatalf("expected verified, got %s", rec.Status)
	}
	if rec.RewardAmount != domain.PatientRewardOctas {
		t.Fatalf("expected reward amount %d, got %d", domain.PatientRewardOctas, rec.RewardAmount)
	}

	reward, err := fx.store.GetReward(ctx, domain.RewardKey(patientAddr, domain.PatientRewardCause()))
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if reward.Status != domain.RewardPending {
		t.Fatalf("expected pending reward, got %s", reward.Status)
	}
	if reward.Amount != domain.PatientRewardOctas {
		t.Fatalf("expected 0.1 APT in octas, got %d", reward.Amount)
	}
}

func TestReviewPatientRecordApproveRequiresNotes(t *testing.T) {
	fx := newReviewFixture(t)
	seedPatientRecord(t, fx.store, patientAddr)
	ctx := context.Background()

	if _, err := fx.reviews.ReviewPatientRecord(ctx, adminSession(), patientAddr, true, "   "); !errors.Is(err, ErrNotesRequired) {
		t.Fatalf("expected ErrNotesRequired, got %v", err)
	}

	rec, err := fx.store.GetPatientRecord(ctx, patientAddr)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != domain.PatientPending {
		t.Fatalf("expected record still pending, got %s", rec.Status)
	}
	if _, err := fx.store.GetReward(ctx, domain.RewardKey(patientAddr, domain.PatientRewardCause())); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected no reward, got %v", err)
	}
}

func TestReviewResearchRequiresNotes(t *testing.T) {
	fx := newReviewFixture(t)
	ctx := context.Background()

	sub := domain.ResearchSubmission{
		ID: domain.ResearchKey(authorAddr, testClock()), Author: authorAddr,
		Status: domain.StatusPending, SubmittedAt: testClock(),
	}
	if err := fx.store.InsertResearch(ctx, sub); err != nil {
		t.Fatalf("seed research: %v", err)
	}

	for _, approve := range []bool{true, false} {
		if _, err := fx.reviews.ReviewResearch(ctx, adminSession(), sub.ID, approve, ""); !errors.Is(err, ErrNotesRequired) {
			t.Fatalf("approve=%v: expected ErrNotesRequired, got %v", approve, err)
		}
	}
}

func TestReviewPatientRecordRewardIssuedOnce(t *testing.T) {
	fx := newReviewFixture(t)
	seedPatientRecord(t, fx.store, patientAddr)
	ctx := context.Background()

	if _, err := fx.reviews.ReviewPatientRecord(ctx, adminSession(), patientAddr, true, "prescription is consistent"); err != nil {
		t.Fatalf("first approval: %v", err)
	}

	// A re-upload resets the record to pending; approving it again must not
	// pay a second time.
	seedPatientRecord(t, fx.store, patientAddr)
	if _, err := fx.reviews.ReviewPatientRecord(ctx, adminSession(), patientAddr, true, "still consistent"); err != nil {
		t.Fatalf("second approval: %v", err)
	}

	summary, err := fx.rewards.UserRewards(ctx, patientAddr)
	if err != nil {
		t.Fatalf("user rewards: %v", err)
	}
	if len(summary.Records) != 1 {
		t.Fatalf("expected exactly 1 reward, got %d", len(summary.Records))
	}
}

func TestReviewPatientRecordVerifiedDoctorAllowed(t *testing.T) {
	fx := newReviewFixture(t)
	seedPatientRecord(t, fx.store, patientAddr)
	ctx := context.Background()

	if err := fx.store.PutProfile(ctx, domain.UserProfile{
		Address: doctorAddr, Role: domain.RoleDoctor, VerificationStatus: domain.VerificationApproved,
	}); err != nil {
		t.Fatalf("seed doctor: %v", err)
	}

	session := Session{Address: doctorAddr, Role: domain.RoleDoctor}
	if _, err := fx.reviews.ReviewPatientRecord(ctx, session, patientAddr, true, "imaging matches the prescription"); err != nil {
		t.Fatalf("verified doctor review: %v", err)
	}
}

func TestReviewPatientRecordUnverifiedDoctorForbidden(t *testing.T) {
	fx := newReviewFixture(t)
	seedPatientRecord(t, fx.store, patientAddr)
	ctx := context.Background()

	if err := fx.store.PutProfile(ctx, domain.UserProfile{
		Address: doctorAddr, Role: domain.RoleDoctor, VerificationStatus: domain.VerificationPending,
	}); err != nil {
		t.Fatalf("seed doctor: %v", err)
	}

	session := Session{Address: doctorAddr, Role: domain.RoleDoctor}
	if _, err := fx.reviews.ReviewPatientRecord(ctx, session, patientAddr, true, "looks fine"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestReviewResearchApproveIssuesRewardPerSubmission(t *testing.T) {
	fx := newReviewFixture(t)
	ctx := context.Background()

	first := domain.ResearchSubmission{
		ID: domain.ResearchKey(authorAddr, testClock()), Author: authorAddr,
		Status: domain.StatusPending, SubmittedAt: testClock(),
	}
	second := domain.ResearchSubmission{
		ID: domain.ResearchKey(authorAddr, testClock().Add(time.Hour)), Author: authorAddr,
		Status: domain.StatusPending, SubmittedAt: testClock().Add(time.Hour),
	}
	for _, sub := range []domain.ResearchSubmission{first, second} {
		if err := fx.store.InsertResearch(ctx, sub); err != nil {
			t.Fatalf("seed research: %v", err)
		}
	}

	if _, err := fx.reviews.ReviewResearch(ctx, adminSession(), first.ID, true, "methodology is sound"); err != nil {
		t.Fatalf("review first: %v", err)
	}
	if _, err := fx.reviews.ReviewResearch(ctx, adminSession(), second.ID, true, "methodology is sound"); err != nil {
		t.Fatalf("review second: %v", err)
	}

	summary, err := fx.rewards.UserRewards(ctx, authorAddr)
	if err != nil {
		t.Fatalf("user rewards: %v", err)
	}
	if len(summary.Records) != 2 {
		t.Fatalf("expected 2 rewards, got %d", len(summary.Records))
	}
	if summary.Pending != 2*domain.ProfessionalRewardOctas {
		t.Fatalf("expected pending total %d, got %d", 2*domain.ProfessionalRewardOctas, summary.Pending)
	}
}

func TestResearchReadOwnOrAdmin(t *testing.T) {
	fx := newReviewFixture(t)
	ctx := context.Background()

	sub := domain.ResearchSubmission{
		ID: domain.ResearchKey(authorAddr, testClock()), Author: authorAddr,
		Status: domain.StatusPending, SubmittedAt: testClock(),
	}
	if err := fx.store.InsertResearch(ctx, sub); err != nil {
		t.Fatalf("seed research: %v", err)
	}

	if _, err := fx.reviews.Research(ctx, Session{Address: authorAddr}, sub.ID); err != nil {
		t.Fatalf("author read: %v", err)
	}
	if _, err := fx.reviews.Research(ctx, adminSession(), sub.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := fx.reviews.Research(ctx, Session{Address: doctorAddr}, sub.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for stranger, got %v", err)
	}
}
