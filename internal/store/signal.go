package store

import (
	"context"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SignalStore struct {
	db DBTX
}

func NewSignalStore(db *pgxpool.Pool) *SignalStore {
	return &SignalStore{db: db}
}

func (s *SignalStore) Record(ctx context.Context, r *domain.SignalRecord) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO signals (tenant_id, project_id, contact_id, channel, source_id)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		 RETURNING id, received_at`,
		r.TenantID, r.ProjectID, r.ContactID, string(r.Channel), r.SourceID,
	).Scan(&r.ID, &r.ReceivedAt)
}

// CountByContact tallies processed signals per source for one contact.
func (s *SignalStore) CountByContact(ctx context.Context, scope domain.ContactScope) (domain.SignalCounts, error) {
	rows, err := s.db.Query(ctx,
		`SELECT channel, COUNT(*)
		 FROM signals
		 WHERE tenant_id = $1 AND project_id = $2 AND contact_id = $3
		 GROUP BY channel`,
		scope.TenantID, scope.ProjectID, scope.ContactID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := domain.SignalCounts{}
	for rows.Next() {
		var (
			channel string
			n       int
		)
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, err
		}
		counts[domain.Channel(channel).Source()] += n
	}
	return counts, rows.Err()
}
