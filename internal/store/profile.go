package store

import (
	"context"
	"fmt"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// ProfileStore persists cognitive profile snapshots. The snapshot is a cache
// of a pure projection; it can always be rebuilt from memories and signals.
type ProfileStore struct {
	db *pgxpool.Pool
}

func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Upsert(ctx context.Context, p *domain.CognitiveProfile) error {
	fingerprint := pgvector.NewVector(p.Fingerprint)
	_, err := s.db.Exec(ctx,
		`INSERT INTO cognitive_profiles (tenant_id, project_id, contact_id, trait_vector, intent_vector,
		                                 type_distribution, fingerprint, signal_counts, dominant_channel,
		                                 memory_count, active_memory_count, confidence_score,
		                                 entropy_score, volatility_score, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (tenant_id, project_id, contact_id) DO UPDATE SET
		     trait_vector = EXCLUDED.trait_vector,
		     intent_vector = EXCLUDED.intent_vector,
		     type_distribution = EXCLUDED.type_distribution,
		     fingerprint = EXCLUDED.fingerprint,
		     signal_counts = EXCLUDED.signal_counts,
		     dominant_channel = EXCLUDED.dominant_channel,
		     memory_count = EXCLUDED.memory_count,
		     active_memory_count = EXCLUDED.active_memory_count,
		     confidence_score = EXCLUDED.confidence_score,
		     entropy_score = EXCLUDED.entropy_score,
		     volatility_score = EXCLUDED.volatility_score,
		     computed_at = EXCLUDED.computed_at`,
		p.TenantID, p.ProjectID, p.ContactID, p.TraitVector, p.IntentVector,
		p.TypeDistribution, fingerprint, p.SignalCounts, string(p.DominantChannel),
		p.MemoryCount, p.ActiveMemoryCount, p.ConfidenceScore,
		p.EntropyScore, p.VolatilityScore, p.ComputedAt,
	)
	return err
}

// FindLookalikes ranks other contacts of the same project by cosine
// similarity of their fingerprints to the scoped contact's snapshot.
// Contacts without memories have a zero fingerprint and are never matched.
func (s *ProfileStore) FindLookalikes(ctx context.Context, scope domain.ContactScope, limit int) ([]domain.ProfileMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT o.contact_id, 1 - (o.fingerprint <=> me.fingerprint) AS similarity
		 FROM cognitive_profiles me
		 JOIN cognitive_profiles o
		   ON o.tenant_id = me.tenant_id AND o.project_id = me.project_id AND o.contact_id <> me.contact_id
		 WHERE me.tenant_id = $1 AND me.project_id = $2 AND me.contact_id = $3
		   AND me.active_memory_count > 0 AND o.active_memory_count > 0
		 ORDER BY o.fingerprint <=> me.fingerprint, o.contact_id
		 LIMIT $4`,
		scope.TenantID, scope.ProjectID, scope.ContactID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("lookalike query: %w", err)
	}
	defer rows.Close()

	var out []domain.ProfileMatch
	for rows.Next() {
		var m domain.ProfileMatch
		if err := rows.Scan(&m.ContactID, &m.Similarity); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
