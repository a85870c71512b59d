package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/notify"
)

// RewardRecorder is the reward intake contract used by the review workflow.
type RewardRecorder interface {
	Record(ctx context.Context, rewardType domain.RewardType, recipient, cause, verifiedBy string, amount domain.Octas) (domain.RewardRecord, error)
}

// ReviewService resolves pending submissions. Transitions are conditional on
// the pending state, so two reviewers racing on the same submission cannot
// both win: the loser gets docstore.ErrAlreadyReviewed.
type ReviewService struct {
	store    docstore.Store
	policy   *ReviewPolicy
	rewards  RewardRecorder
	mirror   ConsentMirror
	notifier notify.Notifier
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewReviewService constructs a ReviewService. mirror may be nil; notifier
// defaults to a no-op.
func NewReviewService(store docstore.Store, policy *ReviewPolicy, rewards RewardRecorder, mirror ConsentMirror, notifier notify.Notifier, logger *slog.Logger) *ReviewService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		store:    store,
		policy:   policy,
		rewards:  rewards,
		mirror:   mirror,
		notifier: notifier,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *ReviewService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// ReviewVerification resolves a pending professional verification request.
// Both outcomes require review notes. Approval stamps the role onto the
// profile.
func (s *ReviewService) ReviewVerification(ctx context.Context, session Session, address string, approve bool, notes string) (domain.VerificationRequest, error) {
	if err := s.policy.AuthorizeAdmin(session); err != nil {
		return domain.VerificationRequest{}, err
	}
	notes = sanitizeString(notes)
	if notes == "" {
		return domain.VerificationRequest{}, ErrNotesRequired
	}

	address = normalizeWalletAddress(address)
	to := domain.StatusRejected
	if approve {
		to = domain.StatusApproved
	}

	req, err := s.store.TransitionVerification(ctx, address, to, docstore.ReviewOutcome{
		Reviewer: normalizeWalletAddress(session.Address),
		Notes:    notes,
		At:       s.nowFn().UTC(),
	})
	if err != nil {
		return domain.VerificationRequest{}, err
	}

	profileStatus := domain.VerificationRejected
	if approve {
		profileStatus = domain.VerificationApproved
	}
	if err := s.store.UpdateProfileVerification(ctx, address, req.Role, profileStatus, s.nowFn().UTC()); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return domain.VerificationRequest{}, err
	}

	if approve && s.mirror != nil {
		if err := s.mirror.UpsertParticipant(ctx, address, string(req.Role)); err != nil {
			s.logger.Warn("mirror participant after verification", "address", address, "error", err)
		}
	}

	s.notifyOutcome(ctx, address, "Verification request reviewed", fmt.Sprintf("Your verification request was %s.", to))
	return req, nil
}

// ReviewPatientRecord resolves a pending patient record. Approval marks the
// record verified, stamps the reward amount, and enqueues a 0.1 APT reward
// exactly once per patient.
func (s *ReviewService) ReviewPatientRecord(ctx context.Context, session Session, address string, approve bool, notes string) (domain.PatientRecord, error) {
	if err := s.policy.AuthorizePatientReview(ctx, session); err != nil {
		return domain.PatientRecord{}, err
	}
	notes = sanitizeString(notes)
	if notes == "" {
		return domain.PatientRecord{}, ErrNotesRequired
	}

	address = normalizeWalletAddress(address)
	to := domain.PatientRejected
	var rewardAmount domain.Octas
	if approve {
		to = domain.PatientVerified
		rewardAmount = domain.PatientRewardOctas
	}

	reviewer := normalizeWalletAddress(session.Address)
	rec, err := s.store.TransitionPatientRecord(ctx, address, to, docstore.ReviewOutcome{
		Reviewer: reviewer,
		Notes:    notes,
		At:       s.nowFn().UTC(),
	}, rewardAmount)
	if err != nil {
		return domain.PatientRecord{}, err
	}

	if approve {
		if _, err := s.rewards.Record(ctx, domain.RewardPatientVerification, address, domain.PatientRewardCause(), reviewer, domain.PatientRewardOctas); err != nil && !errors.Is(err, docstore.ErrDuplicateReward) {
			return domain.PatientRecord{}, fmt.Errorf("record patient reward: %w", err)
		}
	}

	s.notifyOutcome(ctx, address, "Patient record reviewed", fmt.Sprintf("Your patient record was %s.", to))
	return rec, nil
}

// ReviewResearch resolves a pending research submission. Approval enqueues a
// 0.2 APT reward keyed to the submission, so each submission pays at most
// once however many times approval is attempted.
func (s *ReviewService) ReviewResearch(ctx context.Context, session Session, id string, approve bool, notes string) (domain.ResearchSubmission, error) {
	if err := s.policy.AuthorizeAdmin(session); err != nil {
		return domain.ResearchSubmission{}, err
	}
	notes = sanitizeString(notes)
	if notes == "" {
		return domain.ResearchSubmission{}, ErrNotesRequired
	}

	to := domain.StatusRejected
	if approve {
		to = domain.StatusApproved
	}

	reviewer := normalizeWalletAddress(session.Address)
	sub, err := s.store.TransitionResearch(ctx, id, to, docstore.ReviewOutcome{
		Reviewer: reviewer,
		Notes:    notes,
		At:       s.nowFn().UTC(),
	})
	if err != nil {
		return domain.ResearchSubmission{}, err
	}

	if approve {
		if _, err := s.rewards.Record(ctx, domain.RewardProfessionalResearch, sub.Author, sub.ID, reviewer, domain.ProfessionalRewardOctas); err != nil && !errors.Is(err, docstore.ErrDuplicateReward) {
			return domain.ResearchSubmission{}, fmt.Errorf("record research reward: %w", err)
		}
	}

	s.notifyOutcome(ctx, sub.Author, "Research submission reviewed", fmt.Sprintf("Your research submission %q was %s.", sub.Title, to))
	return sub, nil
}

// PendingVerifications lists verification requests for the review queue.
func (s *ReviewService) PendingVerifications(ctx context.Context, session Session, status domain.SubmissionStatus) ([]domain.VerificationRequest, error) {
	if err := s.policy.AuthorizeAdmin(session); err != nil {
		return nil, err
	}
	return s.store.ListVerifications(ctx, status)
}

// PatientRecords lists patient records for the review queue.
func (s *ReviewService) PatientRecords(ctx context.Context, session Session, status domain.PatientStatus) ([]domain.PatientRecord, error) {
	if err := s.policy.AuthorizePatientReview(ctx, session); err != nil {
		return nil, err
	}
	return s.store.ListPatientRecords(ctx, status)
}

// ResearchSubmissions lists research submissions for the review queue.
func (s *ReviewService) ResearchSubmissions(ctx context.Context, session Session, status domain.SubmissionStatus) ([]domain.ResearchSubmission, error) {
	if err := s.policy.AuthorizeAdmin(session); err != nil {
		return nil, err
	}
	return s.store.ListResearch(ctx, status)
}

// Verification fetches one verification request. Owners may always read
// their own; anyone else must be an admin.
func (s *ReviewService) Verification(ctx context.Context, session Session, address string) (domain.VerificationRequest, error) {
	address = normalizeWalletAddress(address)
	if address != normalizeWalletAddress(session.Address) {
		if err := s.policy.AuthorizeAdmin(session); err != nil {
			return domain.VerificationRequest{}, err
		}
	}
	return s.store.GetVerification(ctx, address)
}

// PatientRecord fetches one patient record. Owners may always read their
// own; anyone else must be an authorized reviewer.
func (s *ReviewService) PatientRecord(ctx context.Context, session Session, address string) (domain.PatientRecord, error) {
	address = normalizeWalletAddress(address)
	if address != normalizeWalletAddress(session.Address) {
		if err := s.policy.AuthorizePatientReview(ctx, session); err != nil {
			return domain.PatientRecord{}, err
		}
	}
	return s.store.GetPatientRecord(ctx, address)
}

// Research fetches one research submission. Authors may always read their
// own; anyone else must be an admin.
func (s *ReviewService) Research(ctx context.Context, session Session, id string) (domain.ResearchSubmission, error) {
	sub, err := s.store.GetResearch(ctx, id)
	if err != nil {
		return domain.ResearchSubmission{}, err
	}
	if sub.Author != normalizeWalletAddress(session.Address) {
		if err := s.policy.AuthorizeAdmin(session); err != nil {
			return domain.ResearchSubmission{}, err
		}
	}
	return sub, nil
}

// CanReviewPatients reports whether the session may read patient records it
// does not own.
func (s *ReviewService) CanReviewPatients(ctx context.Context, session Session) bool {
	return s.policy.AuthorizePatientReview(ctx, session) == nil
}

// IsAdmin reports whether the session is on the admin allow-list.
func (s *ReviewService) IsAdmin(session Session) bool {
	return s.policy.IsAdmin(session.Address)
}

// notifyOutcome delivers a best-effort email to the submitter. Failures are
// logged, never propagated: the review already happened.
func (s *ReviewService) notifyOutcome(ctx context.Context, address, subject, message string) {
	profile, err := s.store.GetProfile(ctx, address)
	if err != nil || profile.Email == "" {
		return
	}
	if err := s.notifier.ReviewOutcome(ctx, profile.Email, subject, message); err != nil {
		s.logger.Warn("review outcome notification failed", "address", address, "error", err)
	}
}
