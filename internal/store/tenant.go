package store

import (
	"context"
	"errors"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

// Create inserts a tenant. A name or key hash already in use yields
// ErrConflict.
func (s *TenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (name, project_ids, api_key_hash) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		t.Name, t.ProjectIDs, t.APIKeyHash,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *TenantStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, project_ids, api_key_hash, created_at, updated_at
		 FROM tenants WHERE api_key_hash = $1`,
		apiKeyHash,
	).Scan(&t.ID, &t.Name, &t.ProjectIDs, &t.APIKeyHash, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
