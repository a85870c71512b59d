package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/srizd/clinishare/backend/internal/domain"
)

// MemoryStore is an in-memory Store with the same transition semantics as
// the mongo implementation. It backs the service tests.
type MemoryStore struct {
	mu            sync.Mutex
	profiles      map[string]domain.UserProfile
	verifications map[string]domain.VerificationRequest
	patients      map[string]domain.PatientRecord
	research      map[string]domain.ResearchSubmission
	rewards       map[string]domain.RewardRecord
	accessLogs    []domain.AccessLogEntry

	failNext error
}

// NewMemoryStore instantiates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:      make(map[string]domain.UserProfile),
		verifications: make(map[string]domain.VerificationRequest),
		patients:      make(map[string]domain.PatientRecord),
		research:      make(map[string]domain.ResearchSubmission),
		rewards:       make(map[string]domain.RewardRecord),
	}
}

// FailNext makes the next store call return err.
func (m *MemoryStore) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MemoryStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MemoryStore) EnsureProfile(_ context.Context, address string, now time.Time) (domain.UserProfile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.UserProfile{}, false, err
	}

	if profile, ok := m.profiles[address]; ok {
		return profile, false, nil
	}
	profile := domain.UserProfile{
		Address:            address,
		Role:               domain.RoleExplorer,
		VerificationStatus: domain.VerificationNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.profiles[address] = profile
	return profile, true, nil
}

func (m *MemoryStore) GetProfile(_ context.Context, address string) (domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.UserProfile{}, err
	}

	profile, ok := m.profiles[address]
	if !ok {
		return domain.UserProfile{}, ErrNotFound
	}
	return profile, nil
}

func (m *MemoryStore) PutProfile(_ context.Context, profile domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	m.profiles[profile.Address] = profile
	return nil
}

func (m *MemoryStore) UpdateProfileVerification(_ context.Context, address string, role domain.Role, status domain.VerificationStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	profile, ok := m.profiles[address]
	if !ok {
		return ErrNotFound
	}
	profile.Role = role
	profile.VerificationStatus = status
	profile.UpdatedAt = at
	m.profiles[address] = profile
	return nil
}

func (m *MemoryStore) PutVerification(_ context.Context, req domain.VerificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	m.verifications[req.Address] = req
	return nil
}

func (m *MemoryStore) GetVerification(_ context.Context, address string) (domain.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.VerificationRequest{}, err
	}

	req, ok := m.verifications[address]
	if !ok {
		return domain.VerificationRequest{}, ErrNotFound
	}
	return req, nil
}

func (m *MemoryStore) ListVerifications(_ context.Context, status domain.SubmissionStatus) ([]domain.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var reqs []domain.VerificationRequest
	for _, req := range m.verifications {
		if status != "" && req.Status != status {
			continue
		}
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].SubmittedAt.After(reqs[j].SubmittedAt)
	})
	return reqs, nil
}

func (m *MemoryStore) TransitionVerification(_ context.Context, address string, to domain.SubmissionStatus, outcome ReviewOutcome) (domain.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.VerificationRequest{}, err
	}

	req, ok := m.verifications[address]
	if !ok {
		return domain.VerificationRequest{}, ErrNotFound
	}
	if req.Status != domain.StatusPending {
		return domain.VerificationRequest{}, ErrAlreadyReviewed
	}
	req.Status = to
	req.ReviewedBy = outcome.Reviewer
	at := outcome.At
	req.ReviewedAt = &at
	req.ReviewNotes = outcome.Notes
	m.verifications[address] = req
	return req, nil
}

func (m *MemoryStore) PutPatientRecord(_ context.Context, rec domain.PatientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	m.patients[rec.Address] = rec
	return nil
}

func (m *MemoryStore) GetPatientRecord(_ context.Context, address string) (domain.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.PatientRecord{}, err
	}

	rec, ok := m.patients[address]
	if !ok {
		return domain.PatientRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListPatientRecords(_ context.Context, status domain.PatientStatus) ([]domain.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var recs []domain.PatientRecord
	for _, rec := range m.patients {
		if status != "" && rec.Status != status {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UploadedAt.After(recs[j].UploadedAt)
	})
	return recs, nil
}

func (m *MemoryStore) TransitionPatientRecord(_ context.Context, address string, to domain.PatientStatus, outcome ReviewOutcome, rewardAmount domain.Octas) (domain.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.PatientRecord{}, err
	}

	rec, ok := m.patients[address]
	if !ok {
		return domain.PatientRecord{}, ErrNotFound
	}
	if rec.Status != domain.PatientPending {
		return domain.PatientRecord{}, ErrAlreadyReviewed
	}
	rec.Status = to
	rec.VerifiedBy = outcome.Reviewer
	at := outcome.At
	rec.VerifiedAt = &at
	rec.ReviewNotes = outcome.Notes
	rec.RewardEligible = to == domain.PatientVerified
	rec.RewardAmount = rewardAmount
	m.patients[address] = rec
	return rec, nil
}

func (m *MemoryStore) InsertResearch(_ context.Context, sub domain.ResearchSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	m.research[sub.ID] = sub
	return nil
}

func (m *MemoryStore) GetResearch(_ context.Context, id string) (domain.ResearchSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.ResearchSubmission{}, err
	}

	sub, ok := m.research[id]
	if !ok {
		return domain.ResearchSubmission{}, ErrNotFound
	}
	return sub, nil
}

func (m *MemoryStore) ListResearch(_ context.Context, status domain.SubmissionStatus) ([]domain.ResearchSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var subs []domain.ResearchSubmission
	for _, sub := range m.research {
		if status != "" && sub.Status != status {
			continue
		}
		subs = append(subs, sub)
	}
	sortResearch(subs)
	return subs, nil
}

func (m *MemoryStore) ListResearchByAuthor(_ context.Context, author string) ([]domain.ResearchSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var subs []domain.ResearchSubmission
	for _, sub := range m.research {
		if sub.Author == author {
			subs = append(subs, sub)
		}
	}
	sortResearch(subs)
	return subs, nil
}

func (m *MemoryStore) TransitionResearch(_ context.Context, id string, to domain.SubmissionStatus, outcome ReviewOutcome) (domain.ResearchSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.ResearchSubmission{}, err
	}

	sub, ok := m.research[id]
	if !ok {
		return domain.ResearchSubmission{}, ErrNotFound
	}
	if sub.Status != domain.StatusPending {
		return domain.ResearchSubmission{}, ErrAlreadyReviewed
	}
	sub.Status = to
	sub.ReviewedBy = outcome.Reviewer
	at := outcome.At
	sub.ReviewedAt = &at
	sub.ReviewNotes = outcome.Notes
	m.research[id] = sub
	return sub, nil
}

func (m *MemoryStore) InsertReward(_ context.Context, rec domain.RewardRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	if _, ok := m.rewards[rec.ID]; ok {
		return ErrDuplicateReward
	}
	m.rewards[rec.ID] = rec
	return nil
}

func (m *MemoryStore) GetReward(_ context.Context, id string) (domain.RewardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.RewardRecord{}, err
	}

	rec, ok := m.rewards[id]
	if !ok {
		return domain.RewardRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListRewardsByRecipient(_ context.Context, recipient string) ([]domain.RewardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var recs []domain.RewardRecord
	for _, rec := range m.rewards {
		if rec.Recipient == recipient {
			recs = append(recs, rec)
		}
	}
	sortRewards(recs)
	return recs, nil
}

func (m *MemoryStore) ListRewardsByStatus(_ context.Context, status domain.RewardStatus) ([]domain.RewardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var recs []domain.RewardRecord
	for _, rec := range m.rewards {
		if status != "" && rec.Status != status {
			continue
		}
		recs = append(recs, rec)
	}
	sortRewards(recs)
	return recs, nil
}

func (m *MemoryStore) SettleReward(_ context.Context, id string, status domain.RewardStatus, txHash, failureReason string, at time.Time) (domain.RewardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.RewardRecord{}, err
	}

	rec, ok := m.rewards[id]
	if !ok {
		return domain.RewardRecord{}, ErrNotFound
	}
	if rec.Status != domain.RewardPending {
		return domain.RewardRecord{}, ErrNotPending
	}
	rec.Status = status
	rec.TransactionHash = txHash
	rec.FailureReason = failureReason
	processed := at
	rec.ProcessedAt = &processed
	m.rewards[id] = rec
	return rec, nil
}

func (m *MemoryStore) RewardStats(_ context.Context) (domain.RewardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.RewardStats{}, err
	}

	var stats domain.RewardStats
	for _, rec := range m.rewards {
		stats.Total++
		stats.TotalAmount += rec.Amount
		switch rec.Status {
		case domain.RewardPending:
			stats.Pending++
		case domain.RewardCompleted:
			stats.Completed++
		case domain.RewardFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *MemoryStore) AppendAccessLog(_ context.Context, entry domain.AccessLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	m.accessLogs = append(m.accessLogs, entry)
	return nil
}

func (m *MemoryStore) ListAccessLogsForPatient(_ context.Context, patient string) ([]domain.AccessLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	var entries []domain.AccessLogEntry
	for _, entry := range m.accessLogs {
		if entry.Patient == patient {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func sortResearch(subs []domain.ResearchSubmission) {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
	})
}

func sortRewards(recs []domain.RewardRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
