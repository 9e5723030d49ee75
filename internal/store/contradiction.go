package store

import (
	"context"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContradictionStore keeps the audit trail of detected conflicts, including
// the ones where a lock kept the existing memory unflagged.
type ContradictionStore struct {
	db DBTX
}

func NewContradictionStore(db *pgxpool.Pool) *ContradictionStore {
	return &ContradictionStore{db: db}
}

func (s *ContradictionStore) Create(ctx context.Context, c *domain.ContradictionRecord) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO memory_contradictions (existing_memory_id, new_memory_id, reason, lock_honored)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (existing_memory_id, new_memory_id)
		 DO UPDATE SET reason = EXCLUDED.reason
		 RETURNING id, detected_at`,
		c.ExistingMemoryID, c.NewMemoryID, c.Reason, c.LockHonored,
	).Scan(&c.ID, &c.DetectedAt)
}

// ListByMemoryID returns every record where memoryID is either side of the
// conflict, newest first.
func (s *ContradictionStore) ListByMemoryID(ctx context.Context, memoryID uuid.UUID) ([]domain.ContradictionRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, existing_memory_id, new_memory_id, reason, lock_honored, detected_at
		 FROM memory_contradictions
		 WHERE existing_memory_id = $1 OR new_memory_id = $1
		 ORDER BY detected_at DESC`,
		memoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContradictionRecord
	for rows.Next() {
		var c domain.ContradictionRecord
		if err := rows.Scan(&c.ID, &c.ExistingMemoryID, &c.NewMemoryID, &c.Reason, &c.LockHonored, &c.DetectedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
