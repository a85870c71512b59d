package service

import (
	"errors"
	"io"

	"github.com/srizd/clinishare/backend/internal/domain"
)

var (
	// ErrNotAuthorized indicates the session is not allowed to perform the
	// requested operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotesRequired indicates a review was attempted without notes.
	// Approvals and rejections both require them.
	ErrNotesRequired = errors.New("review notes are required")
	// ErrValidation indicates an inbound payload failed validation.
	ErrValidation = errors.New("invalid input")
)

// Session identifies an authenticated wallet for the duration of a request.
// It is established by the auth service and threaded explicitly through the
// workflow operations.
type Session struct {
	Address string
	Role    domain.Role
}

// FileInput is an inbound upload: a stream plus the metadata needed to
// enforce ceilings before pinning.
type FileInput struct {
	Name    string
	Size    int64
	Content io.Reader
}

// VerificationInput is the payload a professional submits to request
// verification.
type VerificationInput struct {
	Role              domain.Role
	NMRNumber         string
	UIDNumber         string
	Specialization    string
	Institution       string
	YearsExperience   int
	LicenseNumber     string
	AdditionalDetails string
}

// PatientUploadInput is the payload for a patient record submission. The
// prescription is mandatory; imaging files are optional.
type PatientUploadInput struct {
	Age               int
	CaseDetectionDate string
	Prescription      *FileInput
	MRI               *FileInput
	XRay              *FileInput
	AdditionalNotes   string
}

// ResearchInput is the payload for a research submission. The main document
// is mandatory; supporting files are optional.
type ResearchInput struct {
	Title             string
	DiseaseFocus      string
	Abstract          string
	Methodology       string
	Findings          string
	Conclusions       string
	PublicationStatus domain.PublicationStatus
	Document          *FileInput
	SupportingFiles   []FileInput
}

// ProfileInput carries the mutable profile fields.
type ProfileInput struct {
	Name  string
	Email string
	Bio   string
}
