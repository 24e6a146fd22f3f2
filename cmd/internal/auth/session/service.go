package session

import (
	"net/http"
	"time"
)

// Service issues token pairs and hands them to the Transport.
// It is shared by the signup/signin handlers and the rotation path of Authenticator.
type Service struct {
	tokens    TokenManager
	transport Transport
}

// NewService constructs a Service.
func NewService(tokens TokenManager, transport Transport) *Service {
	return &Service{tokens: tokens, transport: transport}
}

// Tokens returns the underlying token manager.
func (s *Service) Tokens() TokenManager { return s.tokens }

// Transport returns the cookie transport.
func (s *Service) Transport() Transport { return s.transport }

// Issue signs a new access token for userID and a refresh token bound to version.
func (s *Service) Issue(userID, version int64, now time.Time) (Pair, error) {
	access, accessExp, err := s.tokens.SignAccess(userID, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := s.tokens.SignRefresh(userID, version, now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

// IssueAndAttach issues a pair and writes both cookies.
func (s *Service) IssueAndAttach(w http.ResponseWriter, userID, version int64, now time.Time) (Pair, error) {
	p, err := s.Issue(userID, version, now)
	if err != nil {
		return Pair{}, err
	}
	s.transport.Attach(w, p)
	return p, nil
}

// Clear expires both cookies.
func (s *Service) Clear(w http.ResponseWriter) { s.transport.Clear(w) }
