package store

import (
	"context"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor runs the writes of one extraction pass in a single transaction.
type Transactor struct {
	db *pgxpool.Pool
}

func NewTransactor(db *pgxpool.Pool) *Transactor {
	return &Transactor{db: db}
}

// InTx hands fn stores bound to a new transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (t *Transactor) InTx(ctx context.Context, fn func(domain.PassStores) error) error {
	return pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		return fn(domain.PassStores{
			Memories:       &MemoryStore{db: tx},
			Contradictions: &ContradictionStore{db: tx},
			Signals:        &SignalStore{db: tx},
		})
	})
}
