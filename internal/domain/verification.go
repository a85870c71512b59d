package domain

import "time"

// SubmissionStatus is the shared review lifecycle for verification requests
// and research submissions: pending is the only non-terminal state.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// VerificationRequest is the document stored at verifications/{address}.
// Resubmission overwrites the previous request at the same key; no history
// is retained.
type VerificationRequest struct {
	Address           string           `bson:"_id" json:"address"`
	Role              Role             `bson:"role" json:"role"`
	NMRNumber         string           `bson:"nmrNumber" json:"nmrNumber"`
	UIDNumber         string           `bson:"uidNumber" json:"uidNumber"`
	Specialization    string           `bson:"specialization" json:"specialization"`
	Institution       string           `bson:"institution" json:"institution"`
	YearsExperience   int              `bson:"yearsExperience" json:"yearsExperience"`
	LicenseNumber     string           `bson:"licenseNumber,omitempty" json:"licenseNumber,omitempty"`
	AdditionalDetails string           `bson:"additionalCredentials,omitempty" json:"additionalCredentials,omitempty"`
	Status            SubmissionStatus `bson:"status" json:"status"`
	SubmittedAt       time.Time        `bson:"submittedAt" json:"submittedAt"`
	ReviewedBy        string           `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time       `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewNotes       string           `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
}
