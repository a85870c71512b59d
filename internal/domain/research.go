package domain

import (
	"fmt"
	"time"
)

// PublicationStatus describes where a submission stands outside this system.
type PublicationStatus string

const (
	PublicationUnpublished PublicationStatus = "unpublished"
	PublicationSubmitted   PublicationStatus = "submitted"
	PublicationPublished   PublicationStatus = "published"
)

// ResearchSubmission is the document stored at research/{address}_{millis}.
// Submissions append; a researcher may hold any number of them.
type ResearchSubmission struct {
	ID                string            `bson:"_id" json:"id"`
	Author            string            `bson:"author" json:"author"`
	Title             string            `bson:"title" json:"title"`
	DiseaseFocus      string            `bson:"diseaseFocus" json:"diseaseFocus"`
	Abstract          string            `bson:"abstract" json:"abstract"`
	Methodology       string            `bson:"methodology" json:"methodology"`
	Findings          string            `bson:"findings" json:"findings"`
	Conclusions       string            `bson:"conclusions" json:"conclusions"`
	Document          *DocumentRef      `bson:"document" json:"document"`
	SupportingFiles   []DocumentRef     `bson:"supportingFiles,omitempty" json:"supportingFiles,omitempty"`
	PublicationStatus PublicationStatus `bson:"publicationStatus" json:"publicationStatus"`
	Status            SubmissionStatus  `bson:"status" json:"status"`
	SubmittedAt       time.Time         `bson:"submittedAt" json:"submittedAt"`
	ReviewedBy        string            `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time        `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewNotes       string            `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
}

// ResearchKey builds the deterministic document key for a submission made by
// the given author at the given instant.
func ResearchKey(author string, at time.Time) string {
	return fmt.Sprintf("%s_%d", author, at.UnixMilli())
}
