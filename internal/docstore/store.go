package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/srizd/clinishare/backend/internal/domain"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyReviewed indicates a submission has left the pending state
	// and cannot be transitioned again.
	ErrAlreadyReviewed = errors.New("submission already reviewed")
	// ErrDuplicateReward indicates a reward for the same recipient and cause
	// has already been recorded.
	ErrDuplicateReward = errors.New("reward already recorded")
	// ErrNotPending indicates a reward settlement raced with another settler.
	ErrNotPending = errors.New("reward is not pending")
)

// ReviewOutcome carries the fields stamped onto a submission when a reviewer
// resolves it.
type ReviewOutcome struct {
	Reviewer string
	Notes    string
	At       time.Time
}

// Store is the document persistence contract used by the services. The mongo
// implementation backs production; the memory implementation backs tests.
type Store interface {
	// Profiles.
	EnsureProfile(ctx context.Context, address string, now time.Time) (domain.UserProfile, bool, error)
	GetProfile(ctx context.Context, address string) (domain.UserProfile, error)
	PutProfile(ctx context.Context, profile domain.UserProfile) error
	UpdateProfileVerification(ctx context.Context, address string, role domain.Role, status domain.VerificationStatus, at time.Time) error

	// Verification requests. Put overwrites any previous request at the
	// same address.
	PutVerification(ctx context.Context, req domain.VerificationRequest) error
	GetVerification(ctx context.Context, address string) (domain.VerificationRequest, error)
	ListVerifications(ctx context.Context, status domain.SubmissionStatus) ([]domain.VerificationRequest, error)
	TransitionVerification(ctx context.Context, address string, to domain.SubmissionStatus, outcome ReviewOutcome) (domain.VerificationRequest, error)

	// Patient records. Put overwrites; one record per address.
	PutPatientRecord(ctx context.Context, rec domain.PatientRecord) error
	GetPatientRecord(ctx context.Context, address string) (domain.PatientRecord, error)
	ListPatientRecords(ctx context.Context, status domain.PatientStatus) ([]domain.PatientRecord, error)
	TransitionPatientRecord(ctx context.Context, address string, to domain.PatientStatus, outcome ReviewOutcome, rewardAmount domain.Octas) (domain.PatientRecord, error)

	// Research submissions append; authors accumulate any number.
	InsertResearch(ctx context.Context, sub domain.ResearchSubmission) error
	GetResearch(ctx context.Context, id string) (domain.ResearchSubmission, error)
	ListResearch(ctx context.Context, status domain.SubmissionStatus) ([]domain.ResearchSubmission, error)
	ListResearchByAuthor(ctx context.Context, author string) ([]domain.ResearchSubmission, error)
	TransitionResearch(ctx context.Context, id string, to domain.SubmissionStatus, outcome ReviewOutcome) (domain.ResearchSubmission, error)

	// Rewards. Insert is idempotent per (recipient, cause): a colliding key
	// returns ErrDuplicateReward and leaves the original untouched.
	InsertReward(ctx context.Context, rec domain.RewardRecord) error
	GetReward(ctx context.Context, id string) (domain.RewardRecord, error)
	ListRewardsByRecipient(ctx context.Context, recipient string) ([]domain.RewardRecord, error)
	ListRewardsByStatus(ctx context.Context, status domain.RewardStatus) ([]domain.RewardRecord, error)
	SettleReward(ctx context.Context, id string, status domain.RewardStatus, txHash, failureReason string, at time.Time) (domain.RewardRecord, error)
	RewardStats(ctx context.Context) (domain.RewardStats, error)

	// Access logs are append-only.
	AppendAccessLog(ctx context.Context, entry domain.AccessLogEntry) error
	ListAccessLogsForPatient(ctx context.Context, patient string) ([]domain.AccessLogEntry, error)
}
