package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; Close does not close it.
// - Version bumps are single UPDATE ... RETURNING statements; Postgres row locking
//   serializes concurrent bumps for the same user.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool  *pgxpool.Pool
	users string
}

// NewPostgresStore constructs a PostgresStore over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return &PostgresStore{
		pool:  pool,
		users: pgx.Identifier{"users"}.Sanitize(),
	}, nil
}

// Close is a no-op: the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }

const pgUserColumns = `id, email, password_hash, allowed, version, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.users+` (email, password_hash, allowed, version, created_at, updated_at)
		 VALUES ($1, $2, TRUE, 0, $3, $3)
		 RETURNING `+pgUserColumns,
		in.Email, in.PasswordHash, in.Now,
	)

	u, err := pgScanUser(row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	const op = "identity.GetUserByID"

	if err := validateID(op, id); err != nil {
		return User{}, err
	}

	row := s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM `+s.users+` WHERE id = $1`, id)
	u, err := pgScanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return User{}, userNotFound(op)
	}

	row := s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM `+s.users+` WHERE email = $1`, email)
	u, err := pgScanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) IncrementVersion(ctx context.Context, id int64) (int64, error) {
	const op = "identity.IncrementVersion"
	return s.bump(ctx, op,
		`UPDATE `+s.users+`
		    SET version = version + 1, updated_at = now()
		  WHERE id = $1
		RETURNING version`, id)
}

func (s *PostgresStore) BanUser(ctx context.Context, id int64) (int64, error) {
	const op = "identity.BanUser"
	return s.bump(ctx, op,
		`UPDATE `+s.users+`
		    SET version = version + 1, allowed = FALSE, updated_at = now()
		  WHERE id = $1
		RETURNING version`, id)
}

func (s *PostgresStore) bump(ctx context.Context, op, query string, id int64) (int64, error) {
	if err := validateID(op, id); err != nil {
		return 0, err
	}

	var version int64
	if err := s.pool.QueryRow(ctx, query, id).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, userNotFound(op)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return version, nil
}

// ---- helpers ----

func pgScanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Allowed, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email", strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
