package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/srizd/clinishare/backend/internal/consent"
	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
	"github.com/srizd/clinishare/backend/internal/pin"
)

// ConsentMirror is the subset of the consent repository the services use to
// keep the graph in step with the document store. It is optional; a nil
// mirror disables graph updates.
type ConsentMirror interface {
	UpsertParticipant(ctx context.Context, address, role string) error
	GrantConsent(ctx context.Context, patient, institution string, at time.Time) error
	RevokeConsent(ctx context.Context, patient, institution string) error
	RecordAccess(ctx context.Context, accessor, patient, action, institution string, at time.Time) error
	HasConsent(ctx context.Context, patient, institution string) (bool, error)
	ConsentedInstitutions(ctx context.Context, patient string) ([]consent.Grant, error)
	AccessHistory(ctx context.Context, patient string) ([]consent.AccessEvent, error)
}

// SubmissionService records verification requests, patient records, and
// research submissions. Files are pinned before any document is written, so
// a failed upload leaves no partial record behind.
type SubmissionService struct {
	store  docstore.Store
	pinner pin.Pinner
	mirror ConsentMirror
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewSubmissionService constructs a SubmissionService. mirror may be nil.
func NewSubmissionService(store docstore.Store, pinner pin.Pinner, mirror ConsentMirror, logger *slog.Logger) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{
		store:  store,
		pinner: pinner,
		mirror: mirror,
		logger: logger,
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *SubmissionService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// SubmitVerification records a professional verification request. A repeat
// submission by the same address overwrites the previous request and resets
// it to pending.
func (s *SubmissionService) SubmitVerification(ctx context.Context, session Session, input VerificationInput) (domain.VerificationRequest, error) {
	address := normalizeWalletAddress(session.Address)

	if input.Role != domain.RoleDoctor && input.Role != domain.RoleResearcher {
		return domain.VerificationRequest{}, fmt.Errorf("%w: role must be doctor or researcher", ErrValidation)
	}
	if input.Role == domain.RoleDoctor && sanitizeString(input.NMRNumber) == "" {
		return domain.VerificationRequest{}, fmt.Errorf("%w: NMR number is required for doctors", ErrValidation)
	}
	if sanitizeString(input.Institution) == "" {
		return domain.VerificationRequest{}, fmt.Errorf("%w: institution is required", ErrValidation)
	}
	if input.YearsExperience < 0 {
		return domain.VerificationRequest{}, fmt.Errorf("%w: years of experience cannot be negative", ErrValidation)
	}

	now := s.nowFn().UTC()
	req := domain.VerificationRequest{
		Address:           address,
		Role:              input.Role,
		NMRNumber:         sanitizeString(input.NMRNumber),
		UIDNumber:         sanitizeString(input.UIDNumber),
		Specialization:    sanitizeString(input.Specialization),
		Institution:       sanitizeString(input.Institution),
		YearsExperience:   input.YearsExperience,
		LicenseNumber:     sanitizeString(input.LicenseNumber),
		AdditionalDetails: sanitizeString(input.AdditionalDetails),
		Status:            domain.StatusPending,
		SubmittedAt:       now,
	}

	if _, _, err := s.store.EnsureProfile(ctx, address, now); err != nil {
		return domain.VerificationRequest{}, err
	}
	if err := s.store.PutVerification(ctx, req); err != nil {
		return domain.VerificationRequest{}, err
	}
	if err := s.store.UpdateProfileVerification(ctx, address, input.Role, domain.VerificationPending, now); err != nil {
		return domain.VerificationRequest{}, err
	}
	return req, nil
}

// UploadPatientRecord pins the submitted files and records the patient
// document. The prescription is mandatory; a new upload by the same address
// replaces the previous record and resets it to pending.
func (s *SubmissionService) UploadPatientRecord(ctx context.Context, session Session, input PatientUploadInput) (domain.PatientRecord, error) {
	address := normalizeWalletAddress(session.Address)

	if input.Age <= 0 || input.Age > 120 {
		return domain.PatientRecord{}, fmt.Errorf("%w: age must be between 1 and 120", ErrValidation)
	}
	if sanitizeString(input.CaseDetectionDate) == "" {
		return domain.PatientRecord{}, fmt.Errorf("%w: case detection date is required", ErrValidation)
	}
	if input.Prescription == nil {
		return domain.PatientRecord{}, fmt.Errorf("%w: prescription file is required", ErrValidation)
	}

	prescription, err := s.pinFile(ctx, pin.CategoryPrescription, *input.Prescription)
	if err != nil {
		return domain.PatientRecord{}, fmt.Errorf("pin prescription: %w", err)
	}

	now := s.nowFn().UTC()
	rec := domain.PatientRecord{
		Address:           address,
		Age:               input.Age,
		CaseDetectionDate: sanitizeString(input.CaseDetectionDate),
		Prescription:      prescription,
		AdditionalNotes:   sanitizeString(input.AdditionalNotes),
		Status:            domain.PatientPending,
		UploadedAt:        now,
	}

	if input.MRI != nil {
		mri, err := s.pinFile(ctx, pin.CategoryMRI, *input.MRI)
		if err != nil {
			return domain.PatientRecord{}, fmt.Errorf("pin MRI scan: %w", err)
		}
		rec.MRI = mri
		rec.MRIExists = true
	}
	if input.XRay != nil {
		xray, err := s.pinFile(ctx, pin.CategoryXRay, *input.XRay)
		if err != nil {
			return domain.PatientRecord{}, fmt.Errorf("pin X-ray scan: %w", err)
		}
		rec.XRay = xray
		rec.XRayExists = true
	}

	if _, _, err := s.store.EnsureProfile(ctx, address, now); err != nil {
		return domain.PatientRecord{}, err
	}
	if err := s.store.PutPatientRecord(ctx, rec); err != nil {
		return domain.PatientRecord{}, err
	}
	if s.mirror != nil {
		// The record is already persisted; the graph is best effort.
		if err := s.mirror.UpsertParticipant(ctx, address, string(domain.RolePatient)); err != nil {
			s.logger.Warn("mirror patient participant", "address", address, "error", err)
		}
	}
	return rec, nil
}

// SubmitResearch pins the research documents and appends a new submission.
// Submissions accumulate; they are keyed by author and submission time.
func (s *SubmissionService) SubmitResearch(ctx context.Context, session Session, input ResearchInput) (domain.ResearchSubmission, error) {
	address := normalizeWalletAddress(session.Address)

	if sanitizeString(input.Title) == "" {
		return domain.ResearchSubmission{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if sanitizeString(input.DiseaseFocus) == "" {
		return domain.ResearchSubmission{}, fmt.Errorf("%w: disease focus is required", ErrValidation)
	}
	if input.Document == nil {
		return domain.ResearchSubmission{}, fmt.Errorf("%w: research document is required", ErrValidation)
	}

	document, err := s.pinFile(ctx, pin.CategoryResearchDoc, *input.Document)
	if err != nil {
		return domain.ResearchSubmission{}, fmt.Errorf("pin research document: %w", err)
	}

	var supporting []domain.DocumentRef
	for _, file := range input.SupportingFiles {
		pinned, err := s.pinFile(ctx, pin.CategorySupporting, file)
		if err != nil {
			return domain.ResearchSubmission{}, fmt.Errorf("pin supporting file %s: %w", file.Name, err)
		}
		supporting = append(supporting, *pinned)
	}

	publicationStatus := input.PublicationStatus
	if publicationStatus == "" {
		publicationStatus = domain.PublicationUnpublished
	}

	now := s.nowFn().UTC()
	sub := domain.ResearchSubmission{
		ID:                domain.ResearchKey(address, now),
		Author:            address,
		Title:             sanitizeString(input.Title),
		DiseaseFocus:      sanitizeString(input.DiseaseFocus),
		Abstract:          sanitizeString(input.Abstract),
		Methodology:       sanitizeString(input.Methodology),
		Findings:          sanitizeString(input.Findings),
		Conclusions:       sanitizeString(input.Conclusions),
		Document:          document,
		SupportingFiles:   supporting,
		PublicationStatus: publicationStatus,
		Status:            domain.StatusPending,
		SubmittedAt:       now,
	}

	if _, _, err := s.store.EnsureProfile(ctx, address, now); err != nil {
		return domain.ResearchSubmission{}, err
	}
	if err := s.store.InsertResearch(ctx, sub); err != nil {
		return domain.ResearchSubmission{}, err
	}
	return sub, nil
}

// MyResearch lists the session's own submissions, newest first.
func (s *SubmissionService) MyResearch(ctx context.Context, session Session) ([]domain.ResearchSubmission, error) {
	return s.store.ListResearchByAuthor(ctx, normalizeWalletAddress(session.Address))
}

func (s *SubmissionService) pinFile(ctx context.Context, category pin.Category, file FileInput) (*domain.DocumentRef, error) {
	pinned, err := s.pinner.Pin(ctx, category, file.Name, file.Content, file.Size)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentRef{
		CID:  pinned.CID,
		URL:  pinned.URL,
		Name: file.Name,
		Size: pinned.Size,
	}, nil
}
