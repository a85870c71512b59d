package domain

import (
	"fmt"
	"time"
)

// Octas is a fixed-point APT amount. 1 APT = 100,000,000 octas; keeping
// amounts integral avoids float drift when summing reward totals.
type Octas uint64

const OctasPerAPT Octas = 100_000_000

// Reward amounts issued by the review workflow.
const (
	PatientRewardOctas      Octas = 10_000_000 // 0.1 APT
	ProfessionalRewardOctas Octas = 20_000_000 // 0.2 APT
)

// APT converts the amount to a display value in whole APT.
func (o Octas) APT() float64 {
	return float64(o) / float64(OctasPerAPT)
}

func (o Octas) String() string {
	return fmt.Sprintf("%.8f APT", o.APT())
}

// RewardType identifies the approval that caused a reward.
type RewardType string

const (
	RewardPatientVerification   RewardType = "patient_verification"
	RewardProfessionalResearch  RewardType = "professional_research"
	patientVerificationCauseKey            = "patient_verification"
)

// RewardStatus is the settlement lifecycle. Both completed and failed are
// terminal; a failed settlement is not retried automatically.
type RewardStatus string

const (
	RewardPending   RewardStatus = "pending"
	RewardCompleted RewardStatus = "completed"
	RewardFailed    RewardStatus = "failed"
)

// RewardRecord is the document stored at rewards/{recipient}_{cause}. The
// key is deterministic so a second approval attempt for the same cause
// collides instead of paying twice.
type RewardRecord struct {
	ID              string       `bson:"_id" json:"id"`
	Type            RewardType   `bson:"type" json:"type"`
	Amount          Octas        `bson:"amount" json:"amount"`
	Recipient       string       `bson:"recipient" json:"recipient"`
	Cause           string       `bson:"cause" json:"cause"`
	VerifiedBy      string       `bson:"verifiedBy" json:"verifiedBy"`
	Status          RewardStatus `bson:"status" json:"status"`
	TransactionHash string       `bson:"transactionHash,omitempty" json:"transactionHash,omitempty"`
	FailureReason   string       `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CreatedAt       time.Time    `bson:"createdAt" json:"createdAt"`
	ProcessedAt     *time.Time   `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// RewardKey builds the deterministic reward document key for a recipient and
// cause identifier.
func RewardKey(recipient, cause string) string {
	return recipient + "_" + cause
}

// PatientRewardCause is the cause identifier used when a patient record is
// verified. A patient holds at most one live record, so the cause is fixed
// per address.
func PatientRewardCause() string {
	return patientVerificationCauseKey
}

// RewardStats aggregates reward counters across all recipients.
type RewardStats struct {
	Total       int   `json:"total"`
	TotalAmount Octas `json:"totalAmount"`
	Pending     int   `json:"pending"`
	Completed   int   `json:"completed"`
	Failed      int   `json:"failed"`
}
