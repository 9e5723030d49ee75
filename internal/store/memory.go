package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const memoryColumns = `id, tenant_id, project_id, contact_id, memory_type, content, confidence,
	source, source_id, source_name, is_locked, is_contradicted, contradicted_by,
	reinforcement_count, last_reinforced_at, created_at, updated_at`

type MemoryStore struct {
	db DBTX
}

func NewMemoryStore(db *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	m.Confidence = domain.ClampConfidence(m.Confidence)
	return s.db.QueryRow(ctx,
		`INSERT INTO memories (tenant_id, project_id, contact_id, memory_type, content, confidence,
		                       source, source_id, source_name, is_locked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		m.TenantID, m.ProjectID, m.ContactID, string(m.Type), m.Content, m.Confidence,
		string(m.Source), m.SourceID, m.SourceName, m.IsLocked,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Memory, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	m, err := scanMemory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListByContact returns a contact's memories, oldest first. Contradicted
// memories are history and are only included on request.
func (s *MemoryStore) ListByContact(ctx context.Context, scope domain.ContactScope, includeContradicted bool) ([]domain.Memory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories
		 WHERE tenant_id = $1 AND project_id = $2 AND contact_id = $3
		   AND ($4 OR NOT is_contradicted)
		 ORDER BY created_at, id`,
		scope.TenantID, scope.ProjectID, scope.ContactID, includeContradicted,
	)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *MemoryStore) Reinforce(ctx context.Context, id uuid.UUID, boost float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE memories
		 SET confidence = LEAST(GREATEST(confidence + $2, 0), 1.0),
		     reinforcement_count = reinforcement_count + 1,
		     last_reinforced_at = NOW(),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, boost,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkContradicted leaves locked memories untouched and reports false for
// them. A missing memory is ErrNotFound.
func (s *MemoryStore) MarkContradicted(ctx context.Context, id uuid.UUID, contradictedBy uuid.UUID) (bool, error) {
	var locked bool
	err := s.db.QueryRow(ctx,
		`WITH target AS (
		     SELECT id, is_locked FROM memories WHERE id = $1
		 ), flagged AS (
		     UPDATE memories m
		     SET is_contradicted = true, contradicted_by = $2, updated_at = NOW()
		     FROM target t
		     WHERE m.id = t.id AND NOT t.is_locked
		     RETURNING m.id
		 )
		 SELECT t.is_locked FROM target t`,
		id, contradictedBy,
	).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return !locked, nil
}

// SetLocked pins or unpins a memory. Locking a contradicted memory is
// ErrConflict and changes nothing.
func (s *MemoryStore) SetLocked(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, locked bool) error {
	var contradicted bool
	err := s.db.QueryRow(ctx,
		`WITH target AS (
		     SELECT id, is_contradicted FROM memories WHERE id = $1 AND tenant_id = $2
		 ), updated AS (
		     UPDATE memories m
		     SET is_locked = $3, updated_at = NOW()
		     FROM target t
		     WHERE m.id = t.id AND NOT ($3 AND t.is_contradicted)
		     RETURNING m.id
		 )
		 SELECT t.is_contradicted FROM target t`,
		id, tenantID, locked,
	).Scan(&contradicted)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if locked && contradicted {
		return ErrConflict
	}
	return nil
}

func scanMemory(row pgx.Row) (*domain.Memory, error) {
	var (
		m        domain.Memory
		memType  string
		source   string
		sourceID *string
		srcName  *string
	)
	err := row.Scan(
		&m.ID, &m.TenantID, &m.ProjectID, &m.ContactID, &memType, &m.Content, &m.Confidence,
		&source, &sourceID, &srcName, &m.IsLocked, &m.IsContradicted, &m.ContradictedBy,
		&m.ReinforcementCount, &m.LastReinforcedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Type = domain.MemoryType(memType)
	m.Source = domain.Source(source)
	if sourceID != nil {
		m.SourceID = *sourceID
	}
	if srcName != nil {
		m.SourceName = *srcName
	}
	return &m, nil
}
