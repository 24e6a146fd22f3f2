package api

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	MaxBodyBytes int64
	TrustProxy   bool

	// AdminToken, when set, guards /ban-user/{id} behind the X-Admin-Token header.
	// Empty leaves the route open.
	AdminToken string
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes: envInt64("AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		TrustProxy:   envBool("AUTH_TRUST_PROXY", false),
		AdminToken:   strings.TrimSpace(os.Getenv("AUTH_ADMIN_TOKEN")),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
