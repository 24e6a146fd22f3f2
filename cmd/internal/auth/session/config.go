package session

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"authjwt/cmd/security/token"
)

const (
	// AccessCookieName and RefreshCookieName are part of the client contract.
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls token TTLs, clock skew tolerance, the signing key and
// cookie attributes.
type Config struct {
	// Issuer is the value set in the "iss" claim of both tokens.
	Issuer string

	// AccessTokenTTL is deliberately short: a still-valid access token is never re-signed,
	// so this bounds how long a logged-out or banned session keeps working.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL bounds how long a device stays signed in without re-entering credentials.
	RefreshTokenTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// SigningKey is the HMAC-SHA256 secret shared by both token types.
	SigningKey []byte

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// RefreshWithoutAccess lets a request carrying only a refresh token go through
	// the rotation path. Off by default: such requests are anonymous.
	RefreshWithoutAccess bool
}

// DefaultConfig returns defaults suitable for development. SigningKey is left empty.
func DefaultConfig() Config {
	return Config{
		Issuer:          "authjwt",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		ClockSkew:       5 * time.Second,
		CookiePath:      "/",
		CookieSecure:    true,
		CookieSameSite:  http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - AUTH_JWT_KEY (>= 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - AUTH_ISSUER
//   - AUTH_ACCESS_TTL
//   - AUTH_REFRESH_TTL
//   - AUTH_CLOCK_SKEW
//   - AUTH_COOKIE_PATH
//   - AUTH_COOKIE_DOMAIN
//   - AUTH_COOKIE_SECURE (true/false)
//   - AUTH_COOKIE_SAMESITE (lax/strict/none)
//   - AUTH_REFRESH_WITHOUT_ACCESS (true/false)
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	var err error
	if cfg.AccessTokenTTL, err = envPositiveDuration("AUTH_ACCESS_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = envPositiveDuration("AUTH_REFRESH_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}

	if v := strings.TrimSpace(os.Getenv("AUTH_CLOCK_SKEW")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 || d > 5*time.Minute {
			return Config{}, fmt.Errorf("%w: AUTH_CLOCK_SKEW", ErrConfig)
		}
		cfg.ClockSkew = d
	}

	if v := strings.TrimSpace(os.Getenv("AUTH_COOKIE_PATH")); v != "" {
		cfg.CookiePath = v
	}
	cfg.CookieDomain = strings.TrimSpace(os.Getenv("AUTH_COOKIE_DOMAIN"))

	if v := strings.TrimSpace(os.Getenv("AUTH_COOKIE_SECURE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: AUTH_COOKIE_SECURE", ErrConfig)
		}
		cfg.CookieSecure = b
	}

	if v := strings.TrimSpace(os.Getenv("AUTH_COOKIE_SAMESITE")); v != "" {
		ss, ok := parseSameSite(v)
		if !ok {
			return Config{}, fmt.Errorf("%w: AUTH_COOKIE_SAMESITE", ErrConfig)
		}
		cfg.CookieSameSite = ss
	}

	if v := strings.TrimSpace(os.Getenv("AUTH_REFRESH_WITHOUT_ACCESS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: AUTH_REFRESH_WITHOUT_ACCESS", ErrConfig)
		}
		cfg.RefreshWithoutAccess = b
	}

	key, err := token.SigningKeyFromEnv(token.MinSigningKeyBytes)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfig, token.SigningKeyEnv, err)
	}
	cfg.SigningKey = key

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c Config) Validate() error {
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrConfig)
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrConfig)
	}
	if len(c.SigningKey) < token.MinSigningKeyBytes {
		return fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfig, token.MinSigningKeyBytes)
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if c.CookieSameSite == http.SameSiteNoneMode && !c.CookieSecure {
		return fmt.Errorf("%w: SameSite=None requires Secure cookies", ErrConfig)
	}
	return nil
}

func envPositiveDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrConfig, key)
	}
	return d, nil
}

func parseSameSite(s string) (http.SameSite, bool) {
	switch strings.ToLower(s) {
	case "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return 0, false
	}
}
