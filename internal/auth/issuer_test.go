package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/config"
	"github.com/revline/booking-platform/internal/model"
)

// memTokenStore is an in-memory RefreshTokenStore.
type memTokenStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{rows: map[uint64]model.RefreshToken{}}
}

func (s *memTokenStore) Store(_ context.Context, userID uint64, tokenHash, salt string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rows[s.nextID] = model.RefreshToken{
		ID: s.nextID, UserID: userID, TokenHash: tokenHash, Salt: salt,
		CreatedAt: time.Now().UTC(), ExpiresAt: expiresAt,
	}
	return nil
}

func (s *memTokenStore) ListByUser(_ context.Context, userID uint64) ([]model.RefreshToken, error) {
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

func (s *memTokenStore) DeleteByID(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memTokenStore) DeleteAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rows {
		if r.UserID == userID {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *memTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func testConfig() config.Config {
	return config.Config{
		AccessSecret:   "access-secret",
		RefreshSecret:  "refresh-secret",
		AccessTTLMin:   30,
		RefreshTTLDays: 30,
	}
}

func TestIssueAccessClaimShape(t *testing.T) {
	issuer := NewIssuer(testConfig(), newMemTokenStore())
	license := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)

	signed, exp, err := issuer.IssueAccess(42, model.RoleOwner, &BusinessClaims{ID: 7, LicenseExpires: license})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 5*time.Second)

	claims, err := issuer.ParseAccess(signed)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, model.RoleOwner, claims.Role)
	require.NotNil(t, claims.Business)
	assert.Equal(t, uint64(7), claims.Business.ID)
	assert.True(t, claims.Business.LicenseExpires.Equal(license))
	assert.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
}

func TestIssueAccessWithoutBusiness(t *testing.T) {
	issuer := NewIssuer(testConfig(), newMemTokenStore())

	signed, _, err := issuer.IssueAccess(42, model.RoleWorker, nil)
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(signed)
	require.NoError(t, err)
	assert.Nil(t, claims.Business)
}

func TestParseAccessTampered(t *testing.T) {
	issuer := NewIssuer(testConfig(), newMemTokenStore())
	signed, _, err := issuer.IssueAccess(1, model.RoleOwner, nil)
	require.NoError(t, err)

	// flip the signature segment
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = issuer.ParseAccess(tampered)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestParseAccessWrongSecret(t *testing.T) {
	other := testConfig()
	other.AccessSecret = "different"
	foreign := NewIssuer(other, newMemTokenStore())
	signed, _, err := foreign.IssueAccess(1, model.RoleOwner, nil)
	require.NoError(t, err)

	issuer := NewIssuer(testConfig(), newMemTokenStore())
	_, err = issuer.ParseAccess(signed)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestParseAccessExpiredIsDistinct(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTLMin = -5 // already expired at issue time
	issuer := NewIssuer(cfg, newMemTokenStore())

	signed, _, err := issuer.IssueAccess(9, model.RoleWorker, nil)
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(signed)
	require.ErrorIs(t, err, ErrAccessExpired)
	// claims still decode so the middleware can attempt a refresh
	assert.Equal(t, uint64(9), claims.UserID)
}

func TestRefreshRoundTrip(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(testConfig(), store)
	ctx := context.Background()

	raw, exp, err := issuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), exp, 5*time.Second)
	assert.Equal(t, 1, store.count())

	uid, err := issuer.ValidateRefresh(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestValidateRefreshFailsClosedOnBadSignature(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(testConfig(), store)
	ctx := context.Background()

	other := testConfig()
	other.RefreshSecret = "different"
	foreign := NewIssuer(other, store)
	raw, _, err := foreign.IssueRefresh(ctx, 42)
	require.NoError(t, err)

	_, err = issuer.ValidateRefresh(ctx, raw)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestRevokeInvalidatesToken(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(testConfig(), store)
	ctx := context.Background()

	raw, _, err := issuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(ctx, raw))
	_, err = issuer.ValidateRefresh(ctx, raw)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	assert.Equal(t, 0, store.count())
}

func TestValidateRefreshDeletesExpiredMatch(t *testing.T) {
	store := newMemTokenStore()
	cfg := testConfig()
	cfg.RefreshTTLDays = -1 // expired at issue time
	expiredIssuer := NewIssuer(cfg, store)
	ctx := context.Background()

	raw, _, err := expiredIssuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 1, store.count())

	issuer := NewIssuer(testConfig(), store)
	_, err = issuer.ValidateRefresh(ctx, raw)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	assert.Equal(t, 0, store.count(), "expired row should be cleaned up on the spot")
}

func TestRevokeAllClearsEveryDevice(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(testConfig(), store)
	ctx := context.Background()

	var raws []string
	for i := 0; i < 3; i++ {
		raw, _, err := issuer.IssueRefresh(ctx, 42)
		require.NoError(t, err)
		raws = append(raws, raw)
	}
	otherUser, _, err := issuer.IssueRefresh(ctx, 99)
	require.NoError(t, err)

	require.NoError(t, issuer.RevokeAll(ctx, 42))
	for _, raw := range raws {
		_, err := issuer.ValidateRefresh(ctx, raw)
		assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	}
	// unrelated user is untouched
	uid, err := issuer.ValidateRefresh(ctx, otherUser)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), uid)
}

func TestRefreshTokensAreDistinctPerDevice(t *testing.T) {
	store := newMemTokenStore()
	issuer := NewIssuer(testConfig(), store)
	ctx := context.Background()

	a, _, err := issuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)
	b, _, err := issuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(ctx, a))

	// revoking one session leaves the other device logged in
	uid, err := issuer.ValidateRefresh(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}
