package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store over a single-file SQLite database.
//
// The *sql.DB is owned by the store (see OpenSQLite) and closed by Close.
// SQLite serializes writers, and each bump is one UPDATE ... RETURNING statement.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at path.
// Foreign keys and WAL are enabled; a single connection avoids SQLITE_BUSY on writes.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("identity: empty sqlite path")
	}

	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verifying sqlite connection: %w", err)
	}
	return db, nil
}

const sqlitePragmas = "_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"

// sqliteDSN appends the connection pragmas, keeping any query the caller passed.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

// NewSQLiteStore wraps an open database. The schema must already be migrated.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for readiness checks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const sqliteUserColumns = `id, email, password_hash, allowed, version, created_at, updated_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, allowed, version, created_at, updated_at)
		 VALUES (?, ?, 1, 0, ?, ?)
		 RETURNING `+sqliteUserColumns,
		in.Email, in.PasswordHash, in.Now.UTC(), in.Now.UTC(),
	)

	u, err := sqliteScanUser(row)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	const op = "identity.GetUserByID"

	if err := validateID(op, id); err != nil {
		return User{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id)
	u, err := sqliteScanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, NormalizeEmail(email))
	u, err := sqliteScanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *SQLiteStore) IncrementVersion(ctx context.Context, id int64) (int64, error) {
	return s.bump(ctx, "identity.IncrementVersion",
		`UPDATE users SET version = version + 1, updated_at = ? WHERE id = ? RETURNING version`, id)
}

func (s *SQLiteStore) BanUser(ctx context.Context, id int64) (int64, error) {
	return s.bump(ctx, "identity.BanUser",
		`UPDATE users SET version = version + 1, allowed = 0, updated_at = ? WHERE id = ? RETURNING version`, id)
}

func (s *SQLiteStore) bump(ctx context.Context, op, query string, id int64) (int64, error) {
	if err := validateID(op, id); err != nil {
		return 0, err
	}
	var version int64
	err := s.db.QueryRowContext(ctx, query, time.Now().UTC(), id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, userNotFound(op)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return version, nil
}

func sqliteScanUser(row *sql.Row) (User, error) {
	var u User
	var created, updated sqliteTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Allowed, &u.Version, &created, &updated)
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.Time(created).UTC()
	u.UpdatedAt = time.Time(updated).UTC()
	return u, nil
}

// sqliteTime accepts both driver-parsed times and the raw text the driver
// stores for time.Time parameters.
type sqliteTime time.Time

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = sqliteTime(v)
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		*t = sqliteTime(time.Time{})
		return nil
	default:
		return fmt.Errorf("sqlite time: unsupported type %T", src)
	}
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = sqliteTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("sqlite time: cannot parse %q", s)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
