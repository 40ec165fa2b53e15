// Package postgres implements match.ProfileStore on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Store keeps every row under a tenant namespace.
type Store struct {
	db        *sql.DB
	namespace string
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	const op = "store/postgres/Open"

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

// New wraps an open connection pool. namespace must not be empty.
func New(db *sql.DB, namespace string) (*Store, error) {
	if db == nil {
		return nil, errors.New("store/postgres/New: nil db")
	}
	if namespace == "" {
		return nil, errors.New("store/postgres/New: empty namespace")
	}
	return &Store{db: db, namespace: namespace}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

var _ match.ProfileStore = (*Store)(nil)
