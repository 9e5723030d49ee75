package service

import (
	"context"
	"errors"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMemoryNotFound     = errors.New("memory not found")
	// ErrMemoryContradicted is returned when locking a memory that newer
	// evidence already replaced.
	ErrMemoryContradicted = errors.New("memory is contradicted and cannot be locked")
)

// MemoryService exposes curation of stored memories. Memories are never
// deleted; contradicted ones stay as history.
type MemoryService struct {
	memoryStore        domain.MemoryStore
	contradictionStore domain.ContradictionStore
	logger             *zap.Logger
}

func NewMemoryService(ms domain.MemoryStore, cs domain.ContradictionStore, logger *zap.Logger) *MemoryService {
	return &MemoryService{memoryStore: ms, contradictionStore: cs, logger: logger}
}

func (s *MemoryService) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Memory, error) {
	m, err := s.memoryStore.GetByID(ctx, id, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMemoryNotFound
	}
	if err != nil {
		return nil, persistence("get memory", err)
	}
	return m, nil
}

func (s *MemoryService) ListByContact(ctx context.Context, scope domain.ContactScope, includeContradicted bool) ([]domain.Memory, error) {
	ms, err := s.memoryStore.ListByContact(ctx, scope, includeContradicted)
	if err != nil {
		return nil, persistence("list memories", err)
	}
	if ms == nil {
		ms = []domain.Memory{}
	}
	return ms, nil
}

// SetLocked pins or unpins a memory. A locked memory keeps receiving
// reinforcements but is never flagged as contradicted, so contradicted
// history cannot be locked.
func (s *MemoryService) SetLocked(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, locked bool) (*domain.Memory, error) {
	err := s.memoryStore.SetLocked(ctx, id, tenantID, locked)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMemoryNotFound
	}
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrMemoryContradicted
	}
	if err != nil {
		return nil, persistence("set lock", err)
	}
	s.logger.Info("memory lock changed",
		zap.String("memory_id", id.String()),
		zap.Bool("locked", locked))
	return s.GetByID(ctx, id, tenantID)
}

// Contradictions returns the audit trail of a memory owned by tenantID.
func (s *MemoryService) Contradictions(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) ([]domain.ContradictionRecord, error) {
	if _, err := s.GetByID(ctx, id, tenantID); err != nil {
		return nil, err
	}
	recs, err := s.contradictionStore.ListByMemoryID(ctx, id)
	if err != nil {
		return nil, persistence("list contradictions", err)
	}
	if recs == nil {
		recs = []domain.ContradictionRecord{}
	}
	return recs, nil
}
