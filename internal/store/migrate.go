package store

import (
	"context"
	"fmt"

	"github.com/cubomagico/memoria/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the bundled schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	files, err := migrations.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := db.Exec(ctx, f.SQL); err != nil {
			return fmt.Errorf("apply %s: %w", f.Name, err)
		}
	}
	return nil
}
