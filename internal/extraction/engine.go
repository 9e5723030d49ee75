// Package extraction turns behavioral signals into memory candidates and
// reconciles them against what is already known about a contact. Everything
// here is pure: no I/O, no clocks, no shared mutable state.
package extraction

import (
	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
)

// Engine runs the channel analyzers with one pattern catalog. It is safe for
// concurrent use.
type Engine struct {
	catalog *PatternCatalog
}

// NewEngine returns an engine over catalog, or over DefaultCatalog when
// catalog is nil.
func NewEngine(catalog *PatternCatalog) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{catalog: catalog}
}

func (e *Engine) Catalog() *PatternCatalog { return e.catalog }

// Analyze validates ev, derives its candidates and reconciles them against
// ec.ExistingMemories. A valid event with no signal yields an empty result.
func (e *Engine) Analyze(ev domain.Event, ec domain.ExtractionContext) (*domain.ExtractionResult, error) {
	candidates, err := e.Candidates(ev)
	if err != nil {
		return nil, err
	}
	if ec.ContactID != uuid.Nil && ev.Contact() != ec.ContactID {
		return nil, &domain.ValidationError{Field: "contact_id", Reason: "does not match the extraction context"}
	}
	return Reconcile(candidates, ec.ExistingMemories), nil
}

// Candidates validates ev and returns its unreconciled memory candidates.
func (e *Engine) Candidates(ev domain.Event) ([]domain.MemoryCandidate, error) {
	if ev == nil {
		return nil, &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	switch v := ev.(type) {
	case domain.QuizEvent:
		return e.quizCandidates(v), nil
	case *domain.QuizEvent:
		return e.quizCandidates(*v), nil
	case domain.SurveyEvent:
		return e.surveyCandidates(v), nil
	case *domain.SurveyEvent:
		return e.surveyCandidates(*v), nil
	case domain.SocialCommentEvent:
		return e.socialCandidates(v), nil
	case *domain.SocialCommentEvent:
		return e.socialCandidates(*v), nil
	case domain.PurchaseEvent:
		return e.purchaseCandidates(v), nil
	case *domain.PurchaseEvent:
		return e.purchaseCandidates(*v), nil
	case domain.ChatEvent:
		return e.chatCandidates(v), nil
	case *domain.ChatEvent:
		return e.chatCandidates(*v), nil
	}
	return nil, &domain.ValidationError{Field: "event", Reason: "has an unsupported type"}
}
