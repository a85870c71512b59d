package domain

import "time"

// PatientStatus is the review lifecycle of an uploaded patient record. The
// success terminal state is "verified" rather than "approved".
type PatientStatus string

const (
	PatientPending  PatientStatus = "pending"
	PatientVerified PatientStatus = "verified"
	PatientRejected PatientStatus = "rejected"
)

// DocumentRef points at a pinned file in the content-addressable store. The
// CID is opaque and immutable; the URL is a gateway convenience.
type DocumentRef struct {
	CID  string `bson:"cid" json:"cid"`
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Size int64  `bson:"size" json:"size"`
}

// PatientRecord is the document stored at patients/{address}. A new upload
// by the same address overwrites the previous record: at most one record
// exists per address at any time.
type PatientRecord struct {
	Address           string        `bson:"_id" json:"address"`
	Age               int           `bson:"age" json:"age"`
	CaseDetectionDate string        `bson:"caseDetectionDate" json:"caseDetectionDate"`
	Prescription      *DocumentRef  `bson:"prescription" json:"prescription"`
	MRI               *DocumentRef  `bson:"mri,omitempty" json:"mri,omitempty"`
	XRay              *DocumentRef  `bson:"xray,omitempty" json:"xray,omitempty"`
	MRIExists         bool          `bson:"mriExists" json:"mriExists"`
	XRayExists        bool          `bson:"xrayExists" json:"xrayExists"`
	AdditionalNotes   string        `bson:"additionalNotes,omitempty" json:"additionalNotes,omitempty"`
	Status            PatientStatus `bson:"status" json:"status"`
	UploadedAt        time.Time     `bson:"uploadedAt" json:"uploadedAt"`
	VerifiedBy        string        `bson:"verifiedBy,omitempty" json:"verifiedBy,omitempty"`
	VerifiedAt        *time.Time    `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
	ReviewNotes       string        `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	RewardEligible    bool          `bson:"rewardEligible" json:"rewardEligible"`
	RewardAmount      Octas         `bson:"rewardAmount" json:"rewardAmount"`
}
