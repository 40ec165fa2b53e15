package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/config"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"gitea.kood.tech/petrkubec/vibetribe/backend/store"
	"gitea.kood.tech/petrkubec/vibetribe/backend/store/mongo"
	"gitea.kood.tech/petrkubec/vibetribe/backend/store/postgres"
)

// initStore opens the configured profile store and wraps it with retries.
// The returned close func releases the connection.
func initStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (match.ProfileStore, func(), error) {
	const op = "initStore"

	var (
		base    match.ProfileStore
		closeFn = func() {}
	)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.Open(connectCtx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		if !cfg.Postgres.SkipMigrate {
			if err := postgres.Migrate(connectCtx, db); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		st, err := postgres.New(db, cfg.App.Namespace)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		base = st
		closeFn = func() { _ = st.Close() }

	case "mongo":
		client, err := mongo.Connect(connectCtx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		st, err := mongo.New(connectCtx, client, cfg.Mongo.Database, cfg.App.Namespace)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		base = st
		closeFn = func() { _ = st.Close(context.Background()) }

	case "memory":
		log.Warn("using the in-memory profile store, data is lost on restart")
		base = store.NewMemory()

	default:
		return nil, nil, fmt.Errorf("%s: unknown store driver %q", op, cfg.Store.Driver)
	}

	log.Info("profile store connected", slog.String("driver", cfg.Store.Driver))

	resilient := store.NewResilient(base, store.RetryConfig{
		Timeout:    cfg.Store.Timeout,
		MaxRetries: cfg.Store.MaxRetries,
	}, log)
	return resilient, closeFn, nil
}
