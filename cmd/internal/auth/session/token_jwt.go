package session

import (
	"errors"
	"fmt"
	"time"

	"authjwt/cmd/identity/ids"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access from refresh tokens signed with the same key.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the decoded payload of either token type.
// Version is set only on refresh tokens.
type Claims struct {
	UserID  int64     `json:"id"`
	Version *int64    `json:"version,omitempty"`
	Type    TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access and refresh tokens.
type TokenManager interface {
	SignAccess(userID int64, now time.Time) (token string, exp time.Time, err error)
	SignRefresh(userID, version int64, now time.Time) (token string, exp time.Time, err error)

	// Verify checks signature, algorithm, issuer and expiry.
	// It returns ErrTokenExpired or an error wrapping ErrTokenInvalid.
	Verify(token string, now time.Time) (Claims, error)

	// VerifyAccess and VerifyRefresh additionally require the matching token type.
	VerifyAccess(token string, now time.Time) (Claims, error)
	VerifyRefresh(token string, now time.Time) (Claims, error)
}

type jwtManager struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clockSkew  time.Duration
	key        []byte
}

// NewJWTManager builds a TokenManager based on HS256 JWTs.
//
// The signing key is read once here and never rotated at runtime.
func NewJWTManager(cfg Config) (TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &jwtManager{
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		clockSkew:  cfg.ClockSkew,
		key:        key,
	}, nil
}

func (m *jwtManager) SignAccess(userID int64, now time.Time) (string, time.Time, error) {
	return m.sign(Claims{UserID: userID, Type: TokenAccess}, now, m.accessTTL)
}

func (m *jwtManager) SignRefresh(userID, version int64, now time.Time) (string, time.Time, error) {
	v := version
	return m.sign(Claims{UserID: userID, Version: &v, Type: TokenRefresh}, now, m.refreshTTL)
}

func (m *jwtManager) sign(c Claims, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if c.UserID <= 0 {
		return "", time.Time{}, fmt.Errorf("session: sign: invalid user id %d", c.UserID)
	}

	// JWT NumericDate has second precision; truncate so exp round-trips exactly.
	now = now.UTC().Truncate(time.Second)
	exp := now.Add(ttl)

	// jti keeps two tokens minted in the same second distinct.
	jti, err := ids.NewULID(now)
	if err != nil {
		return "", time.Time{}, err
	}

	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign: %w", err)
	}
	return signed, exp, nil
}

func (m *jwtManager) Verify(raw string, now time.Time) (Claims, error) {
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	// Build a fresh parser per call so the time function is bound to now.
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var c Claims
	_, err := p.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil {
		// The signature is checked before claims, so an expired verdict implies an authentic token.
		// Claim errors are joined; expiry only counts when it is the sole complaint.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenInvalidIssuer) && !errors.Is(err, jwt.ErrTokenNotValidYet) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if c.UserID <= 0 {
		return Claims{}, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}
	switch c.Type {
	case TokenAccess:
		if c.Version != nil {
			return Claims{}, fmt.Errorf("%w: access token carries version", ErrTokenInvalid)
		}
	case TokenRefresh:
		if c.Version == nil || *c.Version < 0 {
			return Claims{}, fmt.Errorf("%w: refresh token without version", ErrTokenInvalid)
		}
	default:
		return Claims{}, fmt.Errorf("%w: unknown token type %q", ErrTokenInvalid, c.Type)
	}

	return c, nil
}

func (m *jwtManager) VerifyAccess(raw string, now time.Time) (Claims, error) {
	return m.verifyType(raw, now, TokenAccess)
}

func (m *jwtManager) VerifyRefresh(raw string, now time.Time) (Claims, error) {
	return m.verifyType(raw, now, TokenRefresh)
}

func (m *jwtManager) verifyType(raw string, now time.Time, want TokenType) (Claims, error) {
	c, err := m.Verify(raw, now)
	if err != nil {
		return Claims{}, err
	}
	if c.Type != want {
		return Claims{}, fmt.Errorf("%w: expected %s token, got %s", ErrTokenInvalid, want, c.Type)
	}
	return c, nil
}
