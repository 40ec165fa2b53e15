package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	"gitea.kood.tech/petrkubec/vibetribe/backend/migrations"
)

// Migrate applies every embedded schema file in name order. The files are
// idempotent, so running it on each start is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	const op = "store/postgres/Migrate"

	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
	}
	return nil
}
