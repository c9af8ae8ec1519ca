package domain

import (
	"fmt"
	"time"
)

// ArtifactKind classifies a document attached to a consultation.
type ArtifactKind string

const (
	ArtifactKindPsychometric ArtifactKind = "psychometric"
	ArtifactKindLab          ArtifactKind = "lab"
	ArtifactKindNote         ArtifactKind = "note"
)

// RecordKind identifies one of the generated records kept per consultation.
type RecordKind string

const (
	RecordKindQuestions       RecordKind = "questions"
	RecordKindAnswers         RecordKind = "answers"
	RecordKindRecommendations RecordKind = "recommendations"
	RecordKindPlan            RecordKind = "plan"
)

// Consultation is a session for one child.
type Consultation struct {
	ID          string
	ChildName   string
	DateOfBirth string
	Consultant  string
	CreatedAt   time.Time
}

// Artifact is parsed text attached to a consultation.
type Artifact struct {
	ID             string
	ConsultationID string
	Kind           ArtifactKind
	Filename       string
	Content        string
	CreatedAt      time.Time
}

// Record is a JSON payload stored per consultation and kind; writes replace
// the previous payload.
type Record struct {
	ConsultationID string
	Kind           RecordKind
	Payload        []byte
	CreatedAt      time.Time
}

// Questions is the payload of a questions record. ContextUnavailable is set
// when the questions were drafted without knowledge-bank excerpts.
type Questions struct {
	Questions          []string `json:"questions"`
	ContextUnavailable bool     `json:"context_unavailable,omitempty"`
}

// TestsRecord is the payload of a recommendations record.
type TestsRecord struct {
	RuleBased []string `json:"rule_based"`
	Approved  []string `json:"approved"`
	Markdown  string   `json:"markdown"`
}

// PlanRecord is the payload of a plan record.
type PlanRecord struct {
	Markdown string `json:"markdown"`
}

// NewConsultation creates a new Consultation instance
func NewConsultation(id, childName, dob, consultant string, createdAt time.Time) *Consultation {
	return &Consultation{
		ID:          id,
		ChildName:   childName,
		DateOfBirth: dob,
		Consultant:  consultant,
		CreatedAt:   createdAt,
	}
}

// ValidateConsultation validates a Consultation instance
func ValidateConsultation(c *Consultation) error {
	if c == nil {
		return fmt.Errorf("consultation cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("consultation ID is required")
	}

	if c.ChildName == "" {
		return fmt.Errorf("consultation ChildName is required")
	}

	return nil
}

// IsValidArtifactKind checks if an ArtifactKind is valid
func IsValidArtifactKind(k ArtifactKind) bool {
	switch k {
	case ArtifactKindPsychometric, ArtifactKindLab, ArtifactKindNote:
		return true
	}
	return false
}

// IsValidRecordKind checks if a RecordKind is valid
func IsValidRecordKind(k RecordKind) bool {
	switch k {
	case RecordKindQuestions, RecordKindAnswers, RecordKindRecommendations, RecordKindPlan:
		return true
	}
	return false
}
