package session

import (
	"net/http"
	"strings"
	"time"
)

// Pair is a freshly issued access/refresh token pair.
type Pair struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Transport moves tokens between HTTP messages and the client via cookies.
type Transport struct {
	path     string
	domain   string
	secure   bool
	sameSite http.SameSite

	now func() time.Time
}

// NewTransport builds a cookie Transport from the cookie fields of cfg.
func NewTransport(cfg Config) Transport {
	path := cfg.CookiePath
	if path == "" {
		path = "/"
	}
	sameSite := cfg.CookieSameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return Transport{
		path:     path,
		domain:   cfg.CookieDomain,
		secure:   cfg.CookieSecure,
		sameSite: sameSite,
		now:      time.Now,
	}
}

// WithClock returns a copy of t that computes cookie Max-Age against now.
func (t Transport) WithClock(now func() time.Time) Transport {
	if now != nil {
		t.now = now
	}
	return t
}

// Attach sets both token cookies.
//
// Both cookies live as long as the refresh token: an expired access token must
// still reach the server to trigger rotation.
func (t Transport) Attach(w http.ResponseWriter, p Pair) {
	if w == nil {
		return
	}
	t.set(w, AccessCookieName, p.AccessToken, p.RefreshExp)
	t.set(w, RefreshCookieName, p.RefreshToken, p.RefreshExp)
}

// Clear expires both token cookies. Clearing absent cookies is harmless.
func (t Transport) Clear(w http.ResponseWriter) {
	if w == nil {
		return
	}
	t.expire(w, AccessCookieName)
	t.expire(w, RefreshCookieName)
}

// Read returns the raw token values; a missing cookie yields "".
func (t Transport) Read(r *http.Request) (access, refresh string) {
	if r == nil {
		return "", ""
	}
	return cookieValue(r, AccessCookieName), cookieValue(r, RefreshCookieName)
}

func (t Transport) set(w http.ResponseWriter, name, value string, exp time.Time) {
	clock := t.now
	if clock == nil {
		clock = time.Now
	}
	maxAge := int(exp.Sub(clock()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     t.path,
		Domain:   t.domain,
		Expires:  exp.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: t.sameSite,
	})
}

func (t Transport) expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     t.path,
		Domain:   t.domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: t.sameSite,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
