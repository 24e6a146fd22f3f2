package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"authjwt/cmd/identity"
)

// userStore bundles the selected identity.Store with its lifecycle hooks.
type userStore struct {
	users identity.Store

	kind  string
	ready func(ctx context.Context) error
	close func()
}

func (s userStore) release() {
	if s.close != nil {
		s.close()
	}
}

// Ready reports whether the backing database answers. The in-memory store is always ready.
func (s userStore) Ready(ctx context.Context) error {
	if s.ready == nil {
		return nil
	}
	return s.ready(ctx)
}

func (s userStore) persistent() bool { return s.ready != nil }

// openStore picks the user store from cfg.DatabaseURL.
func openStore(ctx context.Context, cfg Config, log *slog.Logger) (userStore, error) {
	raw := strings.TrimSpace(cfg.DatabaseURL)

	switch {
	case raw == "":
		log.Warn("db.disabled.inmemory_store")
		return userStore{users: identity.NewMemoryStore(), kind: "memory"}, nil

	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return openPostgres(ctx, cfg, log)

	case strings.HasPrefix(raw, "sqlite://"), strings.HasPrefix(raw, "file:"):
		return openSQLite(ctx, cfg, log, strings.TrimPrefix(raw, "sqlite://"))

	default:
		return userStore{}, errors.New("app: unsupported AUTH_DATABASE_URL scheme")
	}
}

func openPostgres(ctx context.Context, cfg Config, log *slog.Logger) (userStore, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return userStore{}, fmt.Errorf("app: postgres: %w", err)
	}

	if cfg.DBMigrate {
		if err := identity.MigratePostgres(ctx, pool, log); err != nil {
			pool.Close()
			return userStore{}, err
		}
	}

	st, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return userStore{}, err
	}

	log.Info("db.enabled.postgres_store", "migrated", cfg.DBMigrate)

	// The app owns the pool; PostgresStore.Close is a no-op.
	return userStore{
		users: st,
		kind:  "postgres",
		ready: func(ctx context.Context) error { return PingDB(ctx, pool, 2*time.Second) },
		close: pool.Close,
	}, nil
}

func openSQLite(ctx context.Context, cfg Config, log *slog.Logger, path string) (userStore, error) {
	db, err := identity.OpenSQLite(ctx, path)
	if err != nil {
		return userStore{}, fmt.Errorf("app: sqlite: %w", err)
	}

	if cfg.DBMigrate {
		if err := identity.Migrate(ctx, db, identity.DialectSQLite, log); err != nil {
			_ = db.Close()
			return userStore{}, err
		}
	}

	st, err := identity.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return userStore{}, err
	}

	log.Info("db.enabled.sqlite_store", "migrated", cfg.DBMigrate)

	return userStore{
		users: st,
		kind:  "sqlite",
		ready: func(ctx context.Context) error { return PingSQL(ctx, st.DB(), 2*time.Second) },
		close: func() { _ = st.Close() },
	}, nil
}
