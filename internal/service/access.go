package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/srizd/clinishare/backend/internal/consent"
	"github.com/srizd/clinishare/backend/internal/docstore"
	"github.com/srizd/clinishare/backend/internal/domain"
)

// AccessService owns the audit trail and the consent graph. The document
// store is the source of truth for the audit log; the graph mirror exists
// for relationship queries and is kept best effort.
type AccessService struct {
	store  docstore.Store
	mirror ConsentMirror
	logger *slog.Logger
	nowFn  func() time.Time
	idFn   func() string
}

// NewAccessService constructs an AccessService. mirror may be nil.
func NewAccessService(store docstore.Store, mirror ConsentMirror, logger *slog.Logger) *AccessService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessService{
		store:  store,
		mirror: mirror,
		logger: logger,
		nowFn:  time.Now,
		idFn:   uuid.NewString,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *AccessService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// WithIDGenerator overrides the entry ID generator (used in tests).
func (s *AccessService) WithIDGenerator(idFn func() string) {
	if idFn != nil {
		s.idFn = idFn
	}
}

// LogAccess appends an audit entry and mirrors it into the graph. The
// append is authoritative; a mirror failure is logged but does not fail the
// operation.
func (s *AccessService) LogAccess(ctx context.Context, session Session, patient string, action domain.AccessAction, institution string) (domain.AccessLogEntry, error) {
	patient = normalizeWalletAddress(patient)
	if patient == "" {
		return domain.AccessLogEntry{}, fmt.Errorf("%w: patient address is required", ErrValidation)
	}

	entry := domain.AccessLogEntry{
		ID:          s.idFn(),
		Accessor:    normalizeWalletAddress(session.Address),
		Patient:     patient,
		Action:      action,
		Institution: sanitizeString(institution),
		Timestamp:   s.nowFn().UTC(),
	}
	if err := s.store.AppendAccessLog(ctx, entry); err != nil {
		return domain.AccessLogEntry{}, err
	}

	if s.mirror != nil {
		if err := s.mirror.RecordAccess(ctx, entry.Accessor, entry.Patient, string(entry.Action), entry.Institution, entry.Timestamp); err != nil {
			s.logger.Warn("mirror access edge", "patient", patient, "error", err)
		}
	}
	return entry, nil
}

// GrantConsent records the patient's consent for an institution and writes
// an audit entry.
func (s *AccessService) GrantConsent(ctx context.Context, session Session, institution string) error {
	institution = sanitizeString(institution)
	if institution == "" {
		return fmt.Errorf("%w: institution is required", ErrValidation)
	}

	patient := normalizeWalletAddress(session.Address)
	if _, err := s.LogAccess(ctx, session, patient, domain.AccessGrant, institution); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.GrantConsent(ctx, patient, institution, s.nowFn().UTC()); err != nil {
			return fmt.Errorf("grant consent: %w", err)
		}
	}
	return nil
}

// RevokeConsent removes the patient's consent for an institution and writes
// an audit entry. Revoking an absent consent is a no-op.
func (s *AccessService) RevokeConsent(ctx context.Context, session Session, institution string) error {
	institution = sanitizeString(institution)
	if institution == "" {
		return fmt.Errorf("%w: institution is required", ErrValidation)
	}

	patient := normalizeWalletAddress(session.Address)
	if _, err := s.LogAccess(ctx, session, patient, domain.AccessRevoke, institution); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.RevokeConsent(ctx, patient, institution); err != nil {
			return fmt.Errorf("revoke consent: %w", err)
		}
	}
	return nil
}

// HasConsent reports whether the patient currently consents to the
// institution. Without a graph mirror consent cannot be answered and
// defaults to false.
func (s *AccessService) HasConsent(ctx context.Context, patient, institution string) (bool, error) {
	if s.mirror == nil {
		return false, nil
	}
	return s.mirror.HasConsent(ctx, normalizeWalletAddress(patient), sanitizeString(institution))
}

// ConsentedInstitutions lists the patient's active consent grants.
func (s *AccessService) ConsentedInstitutions(ctx context.Context, patient string) ([]consent.Grant, error) {
	if s.mirror == nil {
		return nil, nil
	}
	return s.mirror.ConsentedInstitutions(ctx, normalizeWalletAddress(patient))
}

// AuditTrail returns the patient's audit entries, newest first.
func (s *AccessService) AuditTrail(ctx context.Context, patient string) ([]domain.AccessLogEntry, error) {
	return s.store.ListAccessLogsForPatient(ctx, normalizeWalletAddress(patient))
}

// AccessHistory returns the aggregated access edges from the graph mirror.
func (s *AccessService) AccessHistory(ctx context.Context, patient string) ([]consent.AccessEvent, error) {
	if s.mirror == nil {
		return nil, nil
	}
	return s.mirror.AccessHistory(ctx, normalizeWalletAddress(patient))
}
