package identity

import (
	"context"
	"time"
)

// User is the authenticated principal.
//
// Version starts at 0 and only ever grows; a refresh token is honored only while
// its embedded version equals Version.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Allowed      bool
	Version      int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUserInput describes a user registration.
// PasswordHash is the already-derived stored form; stores never see plaintext.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary.
type Store interface {
	// CreateUser inserts a user with Allowed=true and Version=0.
	// Returns ConflictError{Field:"email"} when the email already exists.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetUserByID(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// IncrementVersion bumps Version by one in a single atomic step and returns the new value.
	IncrementVersion(ctx context.Context, id int64) (int64, error)

	// BanUser bumps Version and sets Allowed=false in a single atomic step.
	BanUser(ctx context.Context, id int64) (int64, error)

	Close() error
}

func validateCreate(op string, in CreateUserInput) (CreateUserInput, error) {
	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" {
		return in, invalid(op, "email is required")
	}
	if in.PasswordHash == "" {
		return in, invalid(op, "password hash is required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func validateID(op string, id int64) error {
	if id <= 0 {
		return invalid(op, "id must be positive")
	}
	return nil
}
