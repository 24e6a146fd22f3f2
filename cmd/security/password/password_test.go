package password

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fastConfig keeps scrypt cheap for unit tests.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.N = 1 << 10
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "password1")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestHash_Format(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	keyHex, saltHex, ok := strings.Cut(h, ".")
	if !ok {
		t.Fatalf("missing separator in %q", h)
	}
	if len(keyHex) != 2*cfg.Params.KeyLength {
		t.Fatalf("key hex len=%d want=%d", len(keyHex), 2*cfg.Params.KeyLength)
	}
	if len(saltHex) != 2*cfg.Params.SaltLength {
		t.Fatalf("salt hex len=%d want=%d", len(saltHex), 2*cfg.Params.SaltLength)
	}
}

func TestHash_FreshSaltEachCall(t *testing.T) {
	cfg := fastConfig()

	a, err := cfg.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := cfg.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestHash_SaltFloor(t *testing.T) {
	cfg := fastConfig()
	cfg.Params.SaltLength = 2

	h, err := cfg.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	_, saltHex, _ := strings.Cut(h, ".")
	if len(saltHex) != 16 {
		t.Fatalf("salt must be at least 8 bytes, got hex len %d", len(saltHex))
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "password2")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := fastConfig()

	cases := []string{
		"",
		"not-a-hash",
		"zz.00112233445566778899",
		"00112233445566778899aabbccddeeff.",
		".0011223344556677",
		"00112233445566778899aabbccddeeff.0011",
		"00112233445566778899aabbccddeeff.0011223344556677.00",
	}

	for _, in := range cases {
		ok, err := cfg.Verify(in, "whatever")
		if err != ErrInvalidHash {
			t.Fatalf("Verify(%q): expected ErrInvalidHash, got %v", in, err)
		}
		if ok {
			t.Fatalf("Verify(%q): expected false", in)
		}
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	if err := cfg.Validate("password"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestHasher_RoundTripAndDummy(t *testing.T) {
	h, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	ctx := context.Background()
	stored, err := h.Hash(ctx, "password1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	ok, err := h.Verify(ctx, stored, "password1")
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}

	// Must not panic or block.
	h.VerifyDummy(ctx, "anything")
}

func TestHasher_BoundsConcurrency(t *testing.T) {
	cfg := fastConfig()
	cfg.Concurrency = 2

	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	var inflight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.sem.Acquire(context.Background(), 1); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := inflight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inflight.Add(-1)
			h.sem.Release(1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency=%d want<=2", got)
	}
}

func TestHasher_ContextCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.Concurrency = 1

	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	// Hold the only slot.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "password1"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestPolicy_Sequences(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true

	for _, pw := range []string{"abcdefgh", "87654321", "zzzzzzzzzz", "Qwerty123", "abcdefghijklmnop"} {
		if err := cfg.Validate(pw); err != ErrWeakPassword {
			t.Fatalf("Validate(%q): expected ErrWeakPassword, got %v", pw, err)
		}
	}
	if err := cfg.Validate("583920174628"); err != nil {
		t.Fatalf("long non-sequential digits should pass: %v", err)
	}
}

func TestHash_InvalidParams(t *testing.T) {
	cases := map[string]func(*Config){
		"n not power of two": func(c *Config) { c.Params.N = 1000 },
		"zero r":             func(c *Config) { c.Params.R = 0 },
		"key too short":      func(c *Config) { c.Params.KeyLength = 8 },
	}
	for name, mutate := range cases {
		cfg := fastConfig()
		mutate(&cfg)
		if _, err := cfg.Hash("a-very-ok-pass"); err != ErrInvalidParams {
			t.Fatalf("%s: expected ErrInvalidParams, got %v", name, err)
		}
		if _, err := NewHasher(cfg); err != ErrInvalidParams {
			t.Fatalf("%s: NewHasher expected ErrInvalidParams, got %v", name, err)
		}
	}
}
