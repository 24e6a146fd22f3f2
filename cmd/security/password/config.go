package password

import (
	"fmt"
	"math/bits"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// ScryptParams controls scrypt hashing cost.
// N must be a power of two greater than 1.
type ScryptParams struct {
	N          int
	R          int
	P          int
	SaltLength int
	KeyLength  int
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params ScryptParams
	Policy Policy

	// Concurrency bounds simultaneous derivations performed through a Hasher.
	Concurrency int
}

// DefaultConfig returns the baseline used by signup/signin.
func DefaultConfig() Config {
	// CPU-aware bound; clamped to [1..8] to keep memory usage predictable in containers.
	workers := runtime.NumCPU()
	if workers <= 0 {
		workers = 1
	}
	if workers > 8 {
		workers = 8
	}

	return Config{
		Params: ScryptParams{
			N:          1 << 14, // 16 MiB per derivation with r=8
			R:          8,
			P:          1,
			SaltLength: 16,
			KeyLength:  64,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
		Concurrency: workers,
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - AUTH_PASSWORD_MIN_LEN
// - AUTH_PASSWORD_MAX_LEN
// - AUTH_PASSWORD_REJECT_VERY_WEAK (true/false)
// - AUTH_SCRYPT_N (power of two)
// - AUTH_SCRYPT_R
// - AUTH_SCRYPT_P
// - AUTH_SCRYPT_SALT_LEN
// - AUTH_SCRYPT_KEY_LEN
// - AUTH_HASH_CONCURRENCY
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("AUTH_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("AUTH_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("AUTH_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_PASSWORD_REJECT_VERY_WEAK: %w", err)
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if v, ok := os.LookupEnv("AUTH_SCRYPT_N"); ok {
		n, err := atoiInRange(v, 1<<10, 1<<20)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_SCRYPT_N: %w", err)
		}
		if !isPowerOfTwo(n) {
			return Config{}, fmt.Errorf("AUTH_SCRYPT_N: must be a power of two")
		}
		cfg.Params.N = n
	}

	if v, ok := os.LookupEnv("AUTH_SCRYPT_R"); ok {
		n, err := atoiInRange(v, 1, 32)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_SCRYPT_R: %w", err)
		}
		cfg.Params.R = n
	}

	if v, ok := os.LookupEnv("AUTH_SCRYPT_P"); ok {
		n, err := atoiInRange(v, 1, 16)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_SCRYPT_P: %w", err)
		}
		cfg.Params.P = n
	}

	if v, ok := os.LookupEnv("AUTH_SCRYPT_SALT_LEN"); ok {
		n, err := atoiInRange(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_SCRYPT_SALT_LEN: %w", err)
		}
		cfg.Params.SaltLength = n
	}

	if v, ok := os.LookupEnv("AUTH_SCRYPT_KEY_LEN"); ok {
		n, err := atoiInRange(v, 16, 128)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_SCRYPT_KEY_LEN: %w", err)
		}
		cfg.Params.KeyLength = n
	}

	if v, ok := os.LookupEnv("AUTH_HASH_CONCURRENCY"); ok {
		n, err := atoiInRange(v, 1, 256)
		if err != nil {
			return Config{}, fmt.Errorf("AUTH_HASH_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}

	// Final sanity.
	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func isPowerOfTwo(n int) bool {
	return n > 1 && bits.OnesCount(uint(n)) == 1
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
