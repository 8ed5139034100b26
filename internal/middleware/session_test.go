package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revline/booking-platform/internal/auth"
	"github.com/revline/booking-platform/internal/config"
	"github.com/revline/booking-platform/internal/model"
)

type memTokens struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[uint64]model.RefreshToken{}} }

func (s *memTokens) Store(_ context.Context, userID uint64, tokenHash, salt string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.rows[s.next] = model.RefreshToken{
		ID: s.next, UserID: userID, TokenHash: tokenHash, Salt: salt,
		CreatedAt: time.Now(), ExpiresAt: expiresAt,
	}
	return nil
}

func (s *memTokens) ListByUser(_ context.Context, userID uint64) ([]model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RefreshToken
	for _, r := range s.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memTokens) DeleteByID(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memTokens) DeleteAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rows {
		if r.UserID == userID {
			delete(s.rows, id)
		}
	}
	return nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[uint64]model.User
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (s *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *memUsers) put(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

type memBusinesses struct{ businesses map[uint64]model.Business }

func (s *memBusinesses) GetByID(_ context.Context, id uint64) (model.Business, error) {
	b, ok := s.businesses[id]
	if !ok {
		return model.Business{}, sql.ErrNoRows
	}
	return b, nil
}

// fixture wires a real session core over in-memory stores plus a second
// issuer sharing the same secrets that mints already-expired access tokens.
type fixture struct {
	sessions      *auth.Sessions
	users         *memUsers
	expiredIssuer *auth.Issuer
}

func newFixture(users ...model.User) *fixture {
	cfg := config.Config{
		AccessSecret:   "access-secret",
		RefreshSecret:  "refresh-secret",
		AccessTTLMin:   30,
		RefreshTTLDays: 30,
	}
	tokens := newMemTokens()
	us := &memUsers{users: map[uint64]model.User{}}
	for _, u := range users {
		us.users[u.ID] = u
	}
	bs := &memBusinesses{businesses: map[uint64]model.Business{
		7: {ID: 7, OwnerID: 1, LicenseExpirationDate: time.Now().Add(24 * time.Hour)},
	}}

	expiredCfg := cfg
	expiredCfg.AccessTTLMin = -5
	return &fixture{
		sessions:      auth.NewSessions(auth.NewIssuer(cfg, tokens), us, bs),
		users:         us,
		expiredIssuer: auth.NewIssuer(expiredCfg, tokens),
	}
}

func (f *fixture) serve(t *testing.T, cookies ...*http.Cookie) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	for _, ck := range cookies {
		if ck != nil {
			req.AddCookie(ck)
		}
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	h := Session(f.sessions, f.users, false)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, reached
}

func cookie(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: value}
}

// responseCookie returns the named Set-Cookie from the response, or nil.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func assertCookiesCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	for _, name := range []string{AccessCookie, RefreshCookie} {
		ck := responseCookie(rec, name)
		require.NotNil(t, ck, "expected %s to be cleared", name)
		assert.Empty(t, ck.Value)
		assert.Equal(t, -1, ck.MaxAge)
	}
}

func owner() model.User {
	return model.User{ID: 1, Email: "owner@shop.test", Role: model.RoleOwner, PasswordHash: "x"}
}

func TestSessionRejectsMissingTokens(t *testing.T) {
	f := newFixture(owner())
	rec, reached := f.serve(t)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "no tokens")
}

func TestSessionRejectsRefreshWithoutAccess(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)

	rec, reached := f.serve(t, cookie(RefreshCookie, pair.Refresh))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertCookiesCleared(t, rec)
}

func TestSessionAcceptsValidAccessToken(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)

	rec, reached := f.serve(t, cookie(AccessCookie, pair.Access), cookie(RefreshCookie, pair.Refresh))
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, responseCookie(rec, AccessCookie), "no rotation on a fresh token")
}

func TestSessionRotatesExpiredAccessToken(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)
	staleAccess, _, err := f.expiredIssuer.IssueAccess(1, model.RoleOwner, nil)
	require.NoError(t, err)

	rec, reached := f.serve(t, cookie(AccessCookie, staleAccess), cookie(RefreshCookie, pair.Refresh))
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)

	newAccess := responseCookie(rec, AccessCookie)
	require.NotNil(t, newAccess, "rotation must set a fresh access cookie")
	assert.NotEqual(t, staleAccess, newAccess.Value)
	_, err = f.sessions.Issuer().ParseAccess(newAccess.Value)
	assert.NoError(t, err)

	newRefresh := responseCookie(rec, RefreshCookie)
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, pair.Refresh, newRefresh.Value)
	assert.True(t, newRefresh.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, newRefresh.SameSite)
}

func TestSessionRejectsExpiredAccessWithoutRefresh(t *testing.T) {
	f := newFixture(owner())
	staleAccess, _, err := f.expiredIssuer.IssueAccess(1, model.RoleOwner, nil)
	require.NoError(t, err)

	rec, reached := f.serve(t, cookie(AccessCookie, staleAccess))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertCookiesCleared(t, rec)
}

func TestSessionRejectsExpiredAccessWithRevokedRefresh(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)
	require.NoError(t, f.sessions.Logout(context.Background(), pair.Refresh))
	staleAccess, _, err := f.expiredIssuer.IssueAccess(1, model.RoleOwner, nil)
	require.NoError(t, err)

	rec, reached := f.serve(t, cookie(AccessCookie, staleAccess), cookie(RefreshCookie, pair.Refresh))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertCookiesCleared(t, rec)
}

func TestSessionRejectsTamperedAccessToken(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)
	tampered := pair.Access[:len(pair.Access)-2] + "xx"

	rec, reached := f.serve(t, cookie(AccessCookie, tampered), cookie(RefreshCookie, pair.Refresh))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "manipulation")
	assertCookiesCleared(t, rec)
}

func TestSessionRejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)

	changed := time.Now().Add(time.Minute)
	u := owner()
	u.LastPasswordChange = &changed
	f.users.put(u)

	rec, reached := f.serve(t, cookie(AccessCookie, pair.Access), cookie(RefreshCookie, pair.Refresh))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "password changed")
	assertCookiesCleared(t, rec)
}

func TestSessionRejectsSuspendedUser(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)

	u := owner()
	u.Role = model.RoleSuspended
	f.users.put(u)

	rec, reached := f.serve(t, cookie(AccessCookie, pair.Access), cookie(RefreshCookie, pair.Refresh))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertCookiesCleared(t, rec)
}

func TestSessionRotatesOnStaleTenantClaim(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)

	// the owner created business 7 after this token was issued
	biz := uint64(7)
	u := owner()
	u.BusinessID = &biz
	f.users.put(u)

	rec, reached := f.serve(t, cookie(AccessCookie, pair.Access), cookie(RefreshCookie, pair.Refresh))
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)

	newAccess := responseCookie(rec, AccessCookie)
	require.NotNil(t, newAccess)
	claims, err := f.sessions.Issuer().ParseAccess(newAccess.Value)
	require.NoError(t, err)
	require.NotNil(t, claims.Business)
	assert.Equal(t, biz, claims.Business.ID)
}

func TestSessionRejectsStaleTenantClaimWithoutRefresh(t *testing.T) {
	f := newFixture(owner())
	pair, err := f.sessions.IssuePairFor(context.Background(), owner())
	require.NoError(t, err)

	biz := uint64(7)
	u := owner()
	u.BusinessID = &biz
	f.users.put(u)

	rec, reached := f.serve(t, cookie(AccessCookie, pair.Access))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "no refresh token to update claims")
	assertCookiesCleared(t, rec)
}

func TestSessionPopulatesContext(t *testing.T) {
	biz := uint64(7)
	u := owner()
	u.BusinessID = &biz
	f := newFixture(u)
	pair, err := f.sessions.IssuePairFor(context.Background(), u)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.AddCookie(cookie(AccessCookie, pair.Access))
	req.AddCookie(cookie(RefreshCookie, pair.Refresh))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Session(f.sessions, f.users, false)(func(c echo.Context) error {
		assert.Equal(t, uint64(1), c.Get(CtxUserID))
		assert.Equal(t, model.RoleOwner, c.Get(CtxRole))
		assert.Equal(t, biz, c.Get(CtxBusiness))
		got, ok := c.Get(CtxUser).(model.User)
		require.True(t, ok)
		assert.Equal(t, "owner@shop.test", got.Email)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
