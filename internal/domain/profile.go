package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignalCounts tallies processed signals per source channel.
type SignalCounts map[Source]int

func (s SignalCounts) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// CognitiveProfile is derived from a contact's memories and signal tallies.
// It is never edited by hand; rebuilding it from the same inputs yields the
// same values.
type CognitiveProfile struct {
	TenantID          uuid.UUID              `json:"tenant_id,omitempty"`
	ProjectID         uuid.UUID              `json:"project_id"`
	ContactID         uuid.UUID              `json:"contact_id"`
	TraitVector       map[string]float64     `json:"trait_vector"`
	IntentVector      map[string]float64     `json:"intent_vector"`
	TypeDistribution  map[MemoryType]float64 `json:"type_distribution"`
	Fingerprint       []float32              `json:"fingerprint"`
	SignalCounts      SignalCounts           `json:"signal_counts"`
	DominantChannel   Source                 `json:"dominant_channel,omitempty"`
	MemoryCount       int                    `json:"memory_count"`
	ActiveMemoryCount int                    `json:"active_memory_count"`
	ConfidenceScore   float64                `json:"confidence_score"`
	EntropyScore      float64                `json:"entropy_score"`
	VolatilityScore   float64                `json:"volatility_score"`
	ComputedAt        time.Time              `json:"computed_at,omitempty"`
}

type ProfileMatch struct {
	ContactID  uuid.UUID `json:"contact_id"`
	Similarity float64   `json:"similarity"`
}

// SignalRecord is the audit row written for every processed event.
type SignalRecord struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ProjectID  uuid.UUID `json:"project_id"`
	ContactID  uuid.UUID `json:"contact_id"`
	Channel    Channel   `json:"channel"`
	SourceID   string    `json:"source_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// ContradictionRecord is the audit trail of a detected conflict. LockHonored
// is true when the existing memory was locked and kept its flags.
type ContradictionRecord struct {
	ID               uuid.UUID `json:"id"`
	ExistingMemoryID uuid.UUID `json:"existing_memory_id"`
	NewMemoryID      uuid.UUID `json:"new_memory_id"`
	Reason           string    `json:"reason"`
	LockHonored      bool      `json:"lock_honored"`
	DetectedAt       time.Time `json:"detected_at"`
}
