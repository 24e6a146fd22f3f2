package identity

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Dialect selects the embedded migration set.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

var (
	// goose keeps its base FS and dialect in package globals.
	gooseMu sync.Mutex

	gooseUpContext = goose.UpContext
)

// Migrate applies all pending migrations for dialect to db.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, log *slog.Logger) error {
	if db == nil {
		return fmt.Errorf("identity: nil db")
	}

	var dir string
	switch dialect {
	case DialectPostgres:
		dir = "migrations/postgres"
	case DialectSQLite:
		dir = "migrations/sqlite"
	default:
		return fmt.Errorf("identity: unsupported migration dialect %q", dialect)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("identity: migrations fs: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{log: logOrDefault(log)})

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("identity: goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("identity: migrate: %w", err)
	}
	return nil
}

// MigratePostgres runs the postgres migration set through a database/sql view of pool.
// The temporary *sql.DB does not own the pool.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	if pool == nil {
		return fmt.Errorf("identity: nil pool")
	}
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	return Migrate(ctx, db, DialectPostgres, log)
}

type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info("db.migrate", "msg", fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error("db.migrate.fatal", "msg", fmt.Sprintf(format, v...))
	os.Exit(1)
}

func logOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
