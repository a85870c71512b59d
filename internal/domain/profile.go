package domain

import "time"

// Role classifies what a connected account is allowed to do once verified.
type Role string

const (
	RoleExplorer   Role = "Explorer"
	RoleDoctor     Role = "Doctor"
	RoleResearcher Role = "Researcher"
	RolePatient    Role = "Patient"
)

// VerificationStatus tracks the credential-review state carried on a profile.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = "none"
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// UserProfile is the document stored at users/{address}. It is created on
// first session and never deleted.
type UserProfile struct {
	Address            string             `bson:"_id" json:"address"`
	Name               string             `bson:"name" json:"name"`
	Email              string             `bson:"email,omitempty" json:"email,omitempty"`
	Role               Role               `bson:"role" json:"role"`
	VerificationStatus VerificationStatus `bson:"verificationStatus" json:"verificationStatus"`
	Bio                string             `bson:"bio,omitempty" json:"bio,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsVerifiedDoctor reports whether the profile may act as a reviewer of
// patient submissions.
func (p UserProfile) IsVerifiedDoctor() bool {
	return p.Role == RoleDoctor && p.VerificationStatus == VerificationApproved
}
