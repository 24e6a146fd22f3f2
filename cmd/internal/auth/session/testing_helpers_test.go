package session

import (
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SigningKey = []byte(strings.Repeat("s", 32))
	return cfg
}

func mustJWTManager(t *testing.T, cfg Config) TokenManager {
	t.Helper()
	m, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

// fixedClock is a settable clock for deterministic expiry.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
