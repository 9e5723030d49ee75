package service

import (
	"context"
	"fmt"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppliedResult reports the rows an ExtractionResult turned into.
type AppliedResult struct {
	CreatedMemoryIDs    []uuid.UUID                  `json:"created_memory_ids"`
	ReinforcedMemoryIDs []uuid.UUID                  `json:"reinforced_memory_ids"`
	Contradictions      []domain.ContradictionRecord `json:"contradictions"`
}

// ResultApplier writes an ExtractionResult to the stores. The extraction
// engine only describes mutations; this is the one place they happen.
type ResultApplier struct {
	memories       domain.MemoryStore
	contradictions domain.ContradictionStore
	logger         *zap.Logger
}

func NewResultApplier(ms domain.MemoryStore, cs domain.ContradictionStore, logger *zap.Logger) *ResultApplier {
	return &ResultApplier{memories: ms, contradictions: cs, logger: logger}
}

// Apply inserts new memories, applies reinforcements and records
// contradictions for the contact in scope. For a contradiction the new
// memory is always inserted and audited; the existing memory is flagged
// only when it is not locked. Any store failure aborts with ErrPersistence.
func (a *ResultApplier) Apply(ctx context.Context, scope domain.ContactScope, result *domain.ExtractionResult) (*AppliedResult, error) {
	applied := &AppliedResult{
		CreatedMemoryIDs:    []uuid.UUID{},
		ReinforcedMemoryIDs: []uuid.UUID{},
		Contradictions:      []domain.ContradictionRecord{},
	}

	for _, c := range result.NewMemories {
		m := domain.NewMemoryFromCandidate(c, scope.TenantID, scope.ProjectID, scope.ContactID)
		if err := a.memories.Create(ctx, m); err != nil {
			return applied, persistence("create memory", err)
		}
		applied.CreatedMemoryIDs = append(applied.CreatedMemoryIDs, m.ID)
	}

	for _, r := range result.Reinforcements {
		if err := a.memories.Reinforce(ctx, r.MemoryID, domain.ClampConfidence(r.ConfidenceBoost)); err != nil {
			return applied, persistence("reinforce memory", err)
		}
		applied.ReinforcedMemoryIDs = append(applied.ReinforcedMemoryIDs, r.MemoryID)
	}

	for _, c := range result.Contradictions {
		m := domain.NewMemoryFromCandidate(c.NewMemory, scope.TenantID, scope.ProjectID, scope.ContactID)
		if err := a.memories.Create(ctx, m); err != nil {
			return applied, persistence("create contradicting memory", err)
		}
		applied.CreatedMemoryIDs = append(applied.CreatedMemoryIDs, m.ID)

		lockHonored := c.ExistingLocked
		if !lockHonored {
			flagged, err := a.memories.MarkContradicted(ctx, c.ExistingMemoryID, m.ID)
			if err != nil {
				return applied, persistence("mark contradicted", err)
			}
			// The memory may have been locked after the snapshot was read.
			lockHonored = !flagged
		}

		rec := &domain.ContradictionRecord{
			ExistingMemoryID: c.ExistingMemoryID,
			NewMemoryID:      m.ID,
			Reason:           c.ConflictReason,
			LockHonored:      lockHonored,
		}
		if err := a.contradictions.Create(ctx, rec); err != nil {
			return applied, persistence("record contradiction", err)
		}
		applied.Contradictions = append(applied.Contradictions, *rec)

		if lockHonored {
			a.logger.Info("contradiction recorded against locked memory",
				zap.String("memory_id", c.ExistingMemoryID.String()),
				zap.String("new_memory_id", m.ID.String()),
				zap.String("reason", c.ConflictReason))
		}
	}
	return applied, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
