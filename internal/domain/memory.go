package domain

import (
	"time"

	"github.com/google/uuid"
)

type MemoryType string

const (
	MemoryTypePreference    MemoryType = "preference"
	MemoryTypeObjection     MemoryType = "objection"
	MemoryTypeDesire        MemoryType = "desire"
	MemoryTypeTrigger       MemoryType = "trigger"
	MemoryTypePainPoint     MemoryType = "pain_point"
	MemoryTypeHabit         MemoryType = "habit"
	MemoryTypeBelief        MemoryType = "belief"
	MemoryTypeLanguageStyle MemoryType = "language_style"
	MemoryTypeGoal          MemoryType = "goal"
	MemoryTypeFear          MemoryType = "fear"
	MemoryTypeValue         MemoryType = "value"
	MemoryTypeConstraint    MemoryType = "constraint"
	MemoryTypeContext       MemoryType = "context"
)

// AllMemoryTypes lists every memory type in a fixed order. Profile
// fingerprints index their dimensions by this order.
var AllMemoryTypes = []MemoryType{
	MemoryTypePreference,
	MemoryTypeObjection,
	MemoryTypeDesire,
	MemoryTypeTrigger,
	MemoryTypePainPoint,
	MemoryTypeHabit,
	MemoryTypeBelief,
	MemoryTypeLanguageStyle,
	MemoryTypeGoal,
	MemoryTypeFear,
	MemoryTypeValue,
	MemoryTypeConstraint,
	MemoryTypeContext,
}

func ValidMemoryType(t string) bool {
	for _, mt := range AllMemoryTypes {
		if string(mt) == t {
			return true
		}
	}
	return false
}

type Source string

const (
	SourceQuiz      Source = "quiz"
	SourceChat      Source = "chat"
	SourceSocial    Source = "social"
	SourceAgent     Source = "agent"
	SourceManual    Source = "manual"
	SourceSurvey    Source = "survey"
	SourcePurchase  Source = "purchase"
	SourceBehavior  Source = "behavior"
	SourceInference Source = "inference"
)

func ValidSource(s string) bool {
	switch Source(s) {
	case SourceQuiz, SourceChat, SourceSocial, SourceAgent, SourceManual,
		SourceSurvey, SourcePurchase, SourceBehavior, SourceInference:
		return true
	}
	return false
}

type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityNeutral  Polarity = "neutral"
)

// MemoryContent is the structured body of a memory. Polarity is empty when the
// producer had no sentiment signal to attach.
type MemoryContent struct {
	Summary   string         `json:"summary"`
	Details   string         `json:"details,omitempty"`
	Keywords  []string       `json:"keywords,omitempty"`
	Intensity *float64       `json:"intensity,omitempty"`
	Polarity  Polarity       `json:"polarity,omitempty"`
	Context   string         `json:"context,omitempty"`
	RawData   map[string]any `json:"raw_data,omitempty"`
}

type Memory struct {
	ID                 uuid.UUID     `json:"id"`
	TenantID           uuid.UUID     `json:"tenant_id,omitempty"`
	ProjectID          uuid.UUID     `json:"project_id"`
	ContactID          uuid.UUID     `json:"contact_id"`
	Type               MemoryType    `json:"memory_type"`
	Content            MemoryContent `json:"content"`
	Confidence         float64       `json:"confidence"`
	Source             Source        `json:"source"`
	SourceID           string        `json:"source_id,omitempty"`
	SourceName         string        `json:"source_name,omitempty"`
	IsLocked           bool          `json:"is_locked"`
	IsContradicted     bool          `json:"is_contradicted"`
	ContradictedBy     *uuid.UUID    `json:"contradicted_by,omitempty"`
	ReinforcementCount int           `json:"reinforcement_count"`
	LastReinforcedAt   *time.Time    `json:"last_reinforced_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// MemoryCandidate is a proposed memory that has not been reconciled against
// the contact's existing memories yet.
type MemoryCandidate struct {
	Type       MemoryType    `json:"memory_type"`
	Content    MemoryContent `json:"content"`
	Confidence float64       `json:"confidence"`
	Source     Source        `json:"source"`
	SourceID   string        `json:"source_id,omitempty"`
	SourceName string        `json:"source_name,omitempty"`
}

// Reinforcement describes an existing memory that a candidate corroborates.
type Reinforcement struct {
	MemoryID        uuid.UUID `json:"memory_id"`
	ConfidenceBoost float64   `json:"confidence_boost"`
	NewEvidence     string    `json:"new_evidence"`
}

// Contradiction describes a candidate that conflicts with an existing memory.
// ExistingLocked mirrors the existing memory's lock so the applier can keep
// the audit record while leaving the memory's flags alone.
type Contradiction struct {
	ExistingMemoryID uuid.UUID       `json:"existing_memory_id"`
	NewMemory        MemoryCandidate `json:"new_memory"`
	ConflictReason   string          `json:"conflict_reason"`
	ExistingLocked   bool            `json:"existing_locked,omitempty"`
}

type ExtractionResult struct {
	NewMemories    []MemoryCandidate `json:"new_memories"`
	Reinforcements []Reinforcement   `json:"reinforcements"`
	Contradictions []Contradiction   `json:"contradictions"`
}

func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		NewMemories:    []MemoryCandidate{},
		Reinforcements: []Reinforcement{},
		Contradictions: []Contradiction{},
	}
}

func (r *ExtractionResult) Empty() bool {
	return len(r.NewMemories) == 0 && len(r.Reinforcements) == 0 && len(r.Contradictions) == 0
}

// ExtractionContext is the snapshot an analyzer reconciles against.
type ExtractionContext struct {
	ProjectID        uuid.UUID
	ContactID        uuid.UUID
	ExistingMemories []Memory
}

// NewMemoryFromCandidate builds an unsaved Memory row for a contact.
func NewMemoryFromCandidate(c MemoryCandidate, tenantID, projectID, contactID uuid.UUID) *Memory {
	return &Memory{
		TenantID:   tenantID,
		ProjectID:  projectID,
		ContactID:  contactID,
		Type:       c.Type,
		Content:    c.Content,
		Confidence: ClampConfidence(c.Confidence),
		Source:     c.Source,
		SourceID:   c.SourceID,
		SourceName: c.SourceName,
	}
}

func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
