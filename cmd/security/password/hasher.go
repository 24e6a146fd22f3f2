package password

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Hasher runs derivations under a weighted semaphore so that a burst of signups
// cannot pin every CPU and starve unrelated requests.
type Hasher struct {
	cfg Config
	sem *semaphore.Weighted

	dummy string
}

// NewHasher builds a Hasher. It precomputes a dummy hash used to equalize
// timing for unknown accounts.
func NewHasher(cfg Config) (*Hasher, error) {
	n := cfg.Concurrency
	if n <= 0 {
		n = 1
	}

	h := &Hasher{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(n)),
	}

	dummyCfg := cfg
	dummyCfg.Policy = Policy{MinLength: 1, MaxLength: 256}
	dummy, err := dummyCfg.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy

	return h, nil
}

// Config returns the hasher configuration.
func (h *Hasher) Config() Config { return h.cfg }

// Validate applies the password policy without hashing.
func (h *Hasher) Validate(password string) error { return h.cfg.Validate(password) }

// Hash derives a stored hash, waiting for a free slot or ctx cancellation.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	return h.cfg.Hash(password)
}

// Verify compares password against stored, waiting for a free slot or ctx cancellation.
func (h *Hasher) Verify(ctx context.Context, stored, password string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	return h.cfg.Verify(stored, password)
}

// VerifyDummy burns one derivation against a throwaway hash.
func (h *Hasher) VerifyDummy(ctx context.Context, password string) {
	_, _ = h.Verify(ctx, h.dummy, password)
}
