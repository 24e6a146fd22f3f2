package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a dev-only fallback when no database is configured.
// All mutations happen under one mutex, which makes version bumps atomic.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*User
	byEmail map[string]int64
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]*User),
		byEmail: make(map[string]int64),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[in.Email]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	s.nextID++
	u := &User{
		ID:           s.nextID,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Allowed:      true,
		Version:      0,
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID

	return *u, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if err := validateID(op, id); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, userNotFound(op)
	}
	return *u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, userNotFound(op)
	}
	return *s.byID[id], nil
}

func (s *MemoryStore) IncrementVersion(ctx context.Context, id int64) (int64, error) {
	return s.bump(ctx, "identity.IncrementVersion", id, false)
}

func (s *MemoryStore) BanUser(ctx context.Context, id int64) (int64, error) {
	return s.bump(ctx, "identity.BanUser", id, true)
}

func (s *MemoryStore) bump(ctx context.Context, op string, id int64, ban bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateID(op, id); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return 0, userNotFound(op)
	}
	u.Version++
	if ban {
		u.Allowed = false
	}
	u.UpdatedAt = time.Now().UTC()
	return u.Version, nil
}
