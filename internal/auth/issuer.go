// Package auth implements the dual-token session-trust core: short-lived
// signed access tokens carrying tenant claims, long-lived rotating refresh
// tokens stored as salted hashes, and the single-use verification token
// lifecycle shared by onboarding and password-reset flows.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/config"
	"github.com/revline/booking-platform/internal/model"
	"github.com/revline/booking-platform/internal/utils"
)

// ErrAccessExpired marks an access token whose signature verified but whose
// exp claim has passed. The session middleware treats it as refreshable,
// unlike a tampered token.
var ErrAccessExpired = errors.New("access token expired")

// BusinessClaims is the tenant snapshot embedded in access tokens so that
// premium checks need no database round-trip on most requests.
type BusinessClaims struct {
	ID             uint64    `json:"id"`
	LicenseExpires time.Time `json:"license_expires_at"`
}

// AccessClaims is the decoded payload of a verified access token.
type AccessClaims struct {
	UserID   uint64
	Role     string
	Business *BusinessClaims
	IssuedAt time.Time
}

// RefreshTokenStore is the persistence surface the issuer needs for refresh
// tokens. *repository.RefreshTokenRepo satisfies it.
type RefreshTokenStore interface {
	Store(ctx context.Context, userID uint64, tokenHash, salt string, expiresAt time.Time) error
	ListByUser(ctx context.Context, userID uint64) ([]model.RefreshToken, error)
	DeleteByID(ctx context.Context, id uint64) error
	DeleteAllForUser(ctx context.Context, userID uint64) error
}

// Issuer creates and validates both token kinds. Secrets and TTLs are
// injected once at construction; nothing here reads the environment.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	tokens        RefreshTokenStore
}

func NewIssuer(cfg config.Config, tokens RefreshTokenStore) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     time.Duration(cfg.AccessTTLMin) * time.Minute,
		refreshTTL:    time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
		tokens:        tokens,
	}
}

// AccessTTL returns the access token lifetime, also used for the cookie
// max-age so claim expiry and cookie expiry never drift apart.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess signs an HS256 access token with the claim shape
// {sub, role, business?{id, license_expires_at}, iat, exp}.
func (i *Issuer) IssueAccess(userID uint64, role string, biz *BusinessClaims) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.accessTTL)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if biz != nil {
		claims["business"] = map[string]any{
			"id":                 biz.ID,
			"license_expires_at": biz.LicenseExpires.UTC().Format(time.RFC3339),
		}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess verifies an access token. It returns the claims with a nil
// error for a live token, the claims with ErrAccessExpired when only the exp
// claim has passed, and an Unauthorized error for anything else (bad
// signature, malformed payload, wrong algorithm).
func (i *Issuer) ParseAccess(raw string) (AccessClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.accessSecret, nil
	})

	expired := false
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, apperr.Unauthorized("possible token manipulation")
		}
		expired = true
	}

	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return AccessClaims{}, apperr.Unauthorized("invalid token claims")
	}
	ac, err := decodeAccessClaims(mc)
	if err != nil {
		return AccessClaims{}, apperr.Unauthorized("invalid token claims")
	}
	if expired {
		return ac, ErrAccessExpired
	}
	return ac, nil
}

// IssueRefresh signs a refresh token ({sub, exp}) and immediately persists a
// salted hash of it. The raw value is returned to the client and never
// stored.
func (i *Issuer) IssueRefresh(ctx context.Context, userID uint64) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.refreshTTL)
	// jti keeps tokens minted in the same second distinct across devices
	claims := jwt.MapClaims{"sub": userID, "exp": exp.Unix(), "iat": now.Unix(), "jti": uuid.NewString()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	salt, err := utils.RandomHex(16)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := i.tokens.Store(ctx, userID, utils.HashWithSalt(salt, signed), salt, exp); err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateRefresh checks a raw refresh token against the store. The signed
// envelope yields a candidate user (failing closed on a bad signature); the
// user's stored rows are then scanned, re-hashing the raw value with each
// row's salt. An expired match is deleted on the spot and reported invalid.
func (i *Issuer) ValidateRefresh(ctx context.Context, raw string) (uint64, error) {
	userID, _, err := i.matchRefresh(ctx, raw)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// Revoke deletes the stored row matching the raw token (logout of a single
// session, or discarding the old token during rotation).
func (i *Issuer) Revoke(ctx context.Context, raw string) error {
	_, row, err := i.matchRefresh(ctx, raw)
	if err != nil {
		return err
	}
	return i.tokens.DeleteByID(ctx, row.ID)
}

// RevokeAll deletes every refresh token for the user: logout-everywhere and
// password change.
func (i *Issuer) RevokeAll(ctx context.Context, userID uint64) error {
	return i.tokens.DeleteAllForUser(ctx, userID)
}

func (i *Issuer) matchRefresh(ctx context.Context, raw string) (uint64, model.RefreshToken, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.refreshSecret, nil
	})
	if err != nil || !tok.Valid {
		return 0, model.RefreshToken{}, apperr.Unauthorized("invalid refresh token")
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, model.RefreshToken{}, apperr.Unauthorized("invalid refresh token")
	}
	userID, err := claimUint64(mc, "sub")
	if err != nil {
		return 0, model.RefreshToken{}, apperr.Unauthorized("invalid refresh token")
	}

	rows, err := i.tokens.ListByUser(ctx, userID)
	if err != nil {
		return 0, model.RefreshToken{}, err
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if utils.HashWithSalt(row.Salt, raw) != row.TokenHash {
			continue
		}
		if now.After(row.ExpiresAt) {
			// lazy cleanup: the row can never match again
			_ = i.tokens.DeleteByID(ctx, row.ID)
			return 0, model.RefreshToken{}, apperr.Unauthorized("refresh token expired")
		}
		return userID, row, nil
	}
	return 0, model.RefreshToken{}, apperr.Unauthorized("refresh token revoked")
}
