package domain

import (
	"context"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
}

// ContactScope identifies one contact inside a tenant's project.
type ContactScope struct {
	TenantID  uuid.UUID
	ProjectID uuid.UUID
	ContactID uuid.UUID
}

type MemoryStore interface {
	Create(ctx context.Context, m *Memory) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Memory, error)
	ListByContact(ctx context.Context, scope ContactScope, includeContradicted bool) ([]Memory, error)
	// Reinforce adds boost to confidence (capped at 1.0), increments
	// reinforcement_count and stamps last_reinforced_at.
	Reinforce(ctx context.Context, id uuid.UUID, boost float64) error
	// MarkContradicted flags the memory unless it is locked. It reports
	// whether the flag was written.
	MarkContradicted(ctx context.Context, id uuid.UUID, contradictedBy uuid.UUID) (bool, error)
	SetLocked(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, locked bool) error
}

type ContradictionStore interface {
	Create(ctx context.Context, c *ContradictionRecord) error
	ListByMemoryID(ctx context.Context, memoryID uuid.UUID) ([]ContradictionRecord, error)
}

type SignalStore interface {
	Record(ctx context.Context, s *SignalRecord) error
	CountByContact(ctx context.Context, scope ContactScope) (SignalCounts, error)
}

type ProfileStore interface {
	Upsert(ctx context.Context, p *CognitiveProfile) error
	FindLookalikes(ctx context.Context, scope ContactScope, limit int) ([]ProfileMatch, error)
}

// PassStores are the stores one extraction pass writes through.
type PassStores struct {
	Memories       MemoryStore
	Contradictions ContradictionStore
	Signals        SignalStore
}

// Transactor runs fn so that either every write it makes through the given
// stores is kept or none is.
type Transactor interface {
	InTx(ctx context.Context, fn func(PassStores) error) error
}
