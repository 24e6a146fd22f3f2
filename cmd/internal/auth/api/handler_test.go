package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"authjwt/cmd/identity"
	"authjwt/cmd/internal/auth/session"
	"authjwt/cmd/security/password"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	router http.Handler
	store  identity.Store
	clock  *testClock
	cfg    session.Config
}

type fixtureOption func(*fixtureParams)

type fixtureParams struct {
	apiCfg Config
	store  identity.Store
}

func withAdminToken(tok string) fixtureOption {
	return func(p *fixtureParams) { p.apiCfg.AdminToken = tok }
}

func withStore(s identity.Store) fixtureOption {
	return func(p *fixtureParams) { p.store = s }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	p := fixtureParams{
		apiCfg: Config{MaxBodyBytes: 1 << 16},
		store:  identity.NewMemoryStore(),
	}
	for _, opt := range opts {
		opt(&p)
	}

	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}

	sessCfg := session.DefaultConfig()
	sessCfg.SigningKey = []byte(strings.Repeat("k", 32))
	sessCfg.CookieSecure = false

	tokens, err := session.NewJWTManager(sessCfg)
	require.NoError(t, err)
	svc := session.NewService(tokens, session.NewTransport(sessCfg).WithClock(clock.Now))

	pwCfg := password.DefaultConfig()
	pwCfg.Params.N = 1 << 10
	pwCfg.Concurrency = 2
	hasher, err := password.NewHasher(pwCfg)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewHandler(log, p.apiCfg, p.store, hasher, svc, WithNow(clock.Now))
	require.NoError(t, err)

	auth, err := session.NewAuthenticator(log, svc, p.store,
		session.WithClock(clock.Now),
		session.WithErrorHandler(h.RenderError),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(auth.Middleware)
	h.Register(r)

	return &fixture{router: r, store: p.store, clock: clock, cfg: sessCfg}
}

// client keeps a cookie jar keyed by name, the way a browser would for one origin.
type client struct {
	f       *fixture
	cookies map[string]string
}

func (f *fixture) client() *client {
	return &client{f: f, cookies: map[string]string{}}
}

func (c *client) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	rec := httptest.NewRecorder()
	c.f.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}
	return rec
}

func credentials(email, pw string) string {
	b, _ := json.Marshal(map[string]string{"email": email, "password": pw})
	return string(b)
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.False(t, body.Success)
	return body
}

func setCookieNames(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func (c *client) signup(t *testing.T, email string) {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/signup", credentials(email, testPassword), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (c *client) signin(t *testing.T, email string) signinResponse {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/signin", credentials(email, testPassword), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out signinResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSignup_SetsCookies(t *testing.T) {
	f := newFixture(t)
	c := f.client()

	rec := c.do(t, http.MethodPost, "/signup", credentials("a@x.com", testPassword), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	set := setCookieNames(rec)
	for _, name := range []string{session.AccessCookieName, session.RefreshCookieName} {
		ck, ok := set[name]
		require.True(t, ok, "missing cookie %s", name)
		assert.True(t, ck.HttpOnly)
		assert.NotEmpty(t, ck.Value)
	}

	u, err := f.store.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, u.Allowed)
	assert.Equal(t, int64(0), u.Version)
	assert.NotContains(t, u.PasswordHash, testPassword)
	assert.Equal(t, 1, strings.Count(u.PasswordHash, "."))
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.client().signup(t, "a@x.com")

	rec := f.client().do(t, http.MethodPost, "/signup", credentials("a@x.com", "another-password"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email_taken", decodeErr(t, rec).Error.Code)
	assert.Empty(t, setCookieNames(rec))
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "nope"},
		{"unknown field", `{"email":"a@x.com","password":"` + testPassword + `","admin":true}`},
		{"trailing data", credentials("a@x.com", testPassword) + `{}`},
		{"missing email", `{"password":"` + testPassword + `"}`},
		{"bad email", credentials("not-an-email", testPassword)},
		{"display name email", credentials("Bob <b@x.com>", testPassword)},
		{"missing password", `{"email":"a@x.com"}`},
		{"short password", credentials("a@x.com", "short")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.client().do(t, http.MethodPost, "/signup", tc.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "validation_error", decodeErr(t, rec).Error.Code)
		})
	}

	_, err := f.store.GetUserByEmail(context.Background(), "a@x.com")
	assert.True(t, identity.IsNotFound(err))
}

func TestSignup_BodyTooLarge(t *testing.T) {
	f := newFixture(t)
	big := credentials("a@x.com", strings.Repeat("p", 1<<17))

	rec := f.client().do(t, http.MethodPost, "/signup", big, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeErr(t, rec).Error.Code)
}

func TestSignin_ReturnsTokensMatchingCookies(t *testing.T) {
	f := newFixture(t)
	f.client().signup(t, "a@x.com")

	c := f.client()
	out := c.signin(t, "a@x.com")
	assert.True(t, out.Success)
	assert.Equal(t, c.cookies[session.AccessCookieName], out.AccessToken)
	assert.Equal(t, c.cookies[session.RefreshCookieName], out.RefreshToken)
}

func TestSignin_RejectsBadCredentialsUniformly(t *testing.T) {
	f := newFixture(t)
	f.client().signup(t, "a@x.com")

	wrong := f.client().do(t, http.MethodPost, "/signin", credentials("a@x.com", "not-the-password"), nil)
	unknown := f.client().do(t, http.MethodPost, "/signin", credentials("b@x.com", testPassword), nil)

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "invalid_credentials", decodeErr(t, wrong).Error.Code)
	assert.Empty(t, setCookieNames(wrong))
}

func TestSignin_EmailIsCaseSensitive(t *testing.T) {
	f := newFixture(t)
	f.client().signup(t, "a@x.com")

	rec := f.client().do(t, http.MethodPost, "/signin", credentials("A@X.com", testPassword), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.client().do(t, http.MethodPost, "/signin", credentials("  a@x.com ", testPassword), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignin_BannedUser(t *testing.T) {
	f := newFixture(t)
	f.client().signup(t, "a@x.com")
	u, err := f.store.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	_, err = f.store.BanUser(context.Background(), u.ID)
	require.NoError(t, err)

	rec := f.client().do(t, http.MethodPost, "/signin", credentials("a@x.com", testPassword), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "user_banned", decodeErr(t, rec).Error.Code)
	assert.Empty(t, setCookieNames(rec))
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	c := f.client()
	c.signup(t, "a@x.com")

	rec := c.do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")

	var out getUserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "a@x.com", out.User.Email)
	assert.True(t, out.User.Allowed)
	assert.Positive(t, out.User.ID)

	anon := f.client().do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusUnauthorized, anon.Code)
	assert.Equal(t, "unauthorized", decodeErr(t, anon).Error.Code)
}

func TestGetUser_RotatesExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	c := f.client()
	c.signup(t, "a@x.com")
	oldAccess := c.cookies[session.AccessCookieName]
	oldRefresh := c.cookies[session.RefreshCookieName]

	f.clock.Advance(f.cfg.AccessTokenTTL + time.Minute)

	rec := c.do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	set := setCookieNames(rec)
	require.Contains(t, set, session.AccessCookieName)
	require.Contains(t, set, session.RefreshCookieName)
	assert.NotEqual(t, oldAccess, c.cookies[session.AccessCookieName])
	assert.NotEqual(t, oldRefresh, c.cookies[session.RefreshCookieName])

	// The rotated pair keeps working without another rotation.
	rec = c.do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, setCookieNames(rec))
}

func TestBanFlow_ClearsSessionOnNextRequest(t *testing.T) {
	f := newFixture(t)
	c := f.client()
	c.signup(t, "a@x.com")
	c.signin(t, "a@x.com")

	u, err := f.store.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	rec := f.client().do(t, http.MethodPost, "/ban-user/"+strconv.FormatInt(u.ID, 10), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	banned, err := f.store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, banned.Allowed)
	assert.Equal(t, u.Version+1, banned.Version)

	rec = c.do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	set := setCookieNames(rec)
	for _, name := range []string{session.AccessCookieName, session.RefreshCookieName} {
		require.Contains(t, set, name)
		assert.Equal(t, -1, set[name].MaxAge)
	}
	assert.Empty(t, c.cookies)
}

func TestLogoutDevices_InvalidatesOtherRefreshTokens(t *testing.T) {
	f := newFixture(t)
	f.client().signup(t, "a@x.com")

	phone := f.client()
	laptop := f.client()
	phone.signin(t, "a@x.com")
	laptop.signin(t, "a@x.com")

	rec := phone.do(t, http.MethodPost, "/logout-devices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, phone.cookies)

	u, err := f.store.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Version)

	// A still-valid access token is honored until it expires.
	rec = laptop.do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	f.clock.Advance(f.cfg.AccessTokenTTL + time.Minute)

	rec = laptop.do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, laptop.cookies)

	// Fresh credentials still work and carry the new version.
	again := f.client()
	again.signin(t, "a@x.com")
	f.clock.Advance(f.cfg.AccessTokenTTL + time.Minute)
	rec = again.do(t, http.MethodGet, "/get-user", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutDevices_RequiresUser(t *testing.T) {
	f := newFixture(t)
	rec := f.client().do(t, http.MethodPost, "/logout-devices", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeErr(t, rec).Error.Code)
}

func TestBanUser_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path string
		code int
		err  string
	}{
		{"/ban-user/abc", http.StatusBadRequest, "validation_error"},
		{"/ban-user/0", http.StatusBadRequest, "validation_error"},
		{"/ban-user/-4", http.StatusBadRequest, "validation_error"},
		{"/ban-user/999", http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rec := f.client().do(t, http.MethodPost, tc.path, "", nil)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Equal(t, tc.err, decodeErr(t, rec).Error.Code)
		})
	}
}

func TestBanUser_AdminToken(t *testing.T) {
	f := newFixture(t, withAdminToken("s3cret-admin"))
	f.client().signup(t, "a@x.com")
	u, err := f.store.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	path := "/ban-user/" + strconv.FormatInt(u.ID, 10)

	rec := f.client().do(t, http.MethodPost, path, "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.client().do(t, http.MethodPost, path, "", http.Header{AdminTokenHeader: {"wrong"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	got, err := f.store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.Allowed)

	rec = f.client().do(t, http.MethodPost, path, "", http.Header{AdminTokenHeader: {"s3cret-admin"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.client().do(t, http.MethodGet, "/signup", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingStore struct {
	*identity.MemoryStore
	fail bool
}

var errStoreDown = errors.New("store down")

func (s *failingStore) GetUserByID(ctx context.Context, id int64) (identity.User, error) {
	if s.fail {
		return identity.User{}, errStoreDown
	}
	return s.MemoryStore.GetUserByID(ctx, id)
}

func TestMiddlewareStoreFailure_RendersInternalError(t *testing.T) {
	store := &failingStore{MemoryStore: identity.NewMemoryStore()}
	f := newFixture(t, withStore(store))
	c := f.client()
	c.signup(t, "a@x.com")

	store.fail = true
	rec := c.do(t, http.MethodGet, "/get-user", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeErr(t, rec).Error.Code)
	assert.NotContains(t, rec.Body.String(), errStoreDown.Error())

	// Infrastructure failures leave cookies alone.
	assert.Empty(t, setCookieNames(rec))
	assert.Len(t, c.cookies, 2)
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(nil, Config{}, nil, nil, nil)
	assert.Error(t, err)
}
