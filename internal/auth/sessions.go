package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/model"
	"github.com/revline/booking-platform/internal/utils"
)

// UserStore is the credential lookup surface the session core needs.
// *repository.UserRepo satisfies it.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// BusinessStore resolves the tenant snapshot embedded in access tokens.
// *repository.BusinessRepo satisfies it.
type BusinessStore interface {
	GetByID(ctx context.Context, id uint64) (model.Business, error)
}

// TokenPair is a freshly issued access/refresh pair with cookie expiries.
type TokenPair struct {
	Access     string
	AccessExp  time.Time
	Refresh    string
	RefreshExp time.Time
}

// Sessions ties the issuer to the credential and tenant stores: login,
// rotation with refreshed claims, and revocation.
type Sessions struct {
	issuer     *Issuer
	users      UserStore
	businesses BusinessStore
}

func NewSessions(issuer *Issuer, users UserStore, businesses BusinessStore) *Sessions {
	return &Sessions{issuer: issuer, users: users, businesses: businesses}
}

// Issuer exposes the underlying token issuer for middleware parse calls.
func (s *Sessions) Issuer() *Issuer { return s.issuer }

// Login verifies credentials and issues a fresh token pair. The redirect
// target is /bookings when the user belongs to a business with an active
// license, /setup otherwise.
func (s *Sessions) Login(ctx context.Context, email, password string) (model.User, TokenPair, string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, TokenPair{}, "", apperr.Unauthorized("invalid credentials")
		}
		return model.User{}, TokenPair{}, "", err
	}
	if u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, TokenPair{}, "", apperr.Unauthorized("invalid credentials")
	}
	if u.Role == model.RoleSuspended {
		return model.User{}, TokenPair{}, "", apperr.Unauthorized("account suspended")
	}

	pair, biz, err := s.issuePair(ctx, u)
	if err != nil {
		return model.User{}, TokenPair{}, "", err
	}

	redirect := "/setup"
	if biz != nil && biz.LicenseExpires.After(time.Now().UTC()) {
		redirect = "/bookings"
	}
	return u, pair, redirect, nil
}

// Rotate exchanges a valid refresh token for a new pair, revoking the old
// token and re-reading the user so the new access token carries fresh tenant
// claims. Two concurrent rotations of the same token can both win the
// validate step; the outcome is an extra valid session, not a lockout, and
// is accepted.
func (s *Sessions) Rotate(ctx context.Context, oldRefresh string) (model.User, TokenPair, error) {
	userID, err := s.issuer.ValidateRefresh(ctx, oldRefresh)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, TokenPair{}, apperr.Unauthorized("unknown user")
		}
		return model.User{}, TokenPair{}, err
	}
	if u.Role == model.RoleSuspended {
		_ = s.issuer.RevokeAll(ctx, u.ID)
		return model.User{}, TokenPair{}, apperr.Unauthorized("account suspended")
	}

	if err := s.issuer.Revoke(ctx, oldRefresh); err != nil {
		// lost the delete race to a concurrent rotation; the new pair is
		// still coherent
		logrus.WithError(err).WithField("user_id", u.ID).Debug("refresh revoke after rotate")
	}
	pair, _, err := s.issuePair(ctx, u)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout revokes the presented refresh token only.
func (s *Sessions) Logout(ctx context.Context, refresh string) error {
	return s.issuer.Revoke(ctx, refresh)
}

// LogoutAll revokes every refresh token for the user.
func (s *Sessions) LogoutAll(ctx context.Context, userID uint64) error {
	return s.issuer.RevokeAll(ctx, userID)
}

// BusinessClaimsFor loads the tenant snapshot for a user, or nil when the
// user has no business association yet.
func (s *Sessions) BusinessClaimsFor(ctx context.Context, u model.User) (*BusinessClaims, error) {
	if u.BusinessID == nil {
		return nil, nil
	}
	b, err := s.businesses.GetByID(ctx, *u.BusinessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &BusinessClaims{ID: b.ID, LicenseExpires: b.LicenseExpirationDate.UTC()}, nil
}

// IssuePairFor issues a fresh pair for a user whose identity is already
// established, skipping the credential check that Login performs.
func (s *Sessions) IssuePairFor(ctx context.Context, u model.User) (TokenPair, error) {
	pair, _, err := s.issuePair(ctx, u)
	return pair, err
}

func (s *Sessions) issuePair(ctx context.Context, u model.User) (TokenPair, *BusinessClaims, error) {
	biz, err := s.BusinessClaimsFor(ctx, u)
	if err != nil {
		return TokenPair{}, nil, err
	}
	access, accessExp, err := s.issuer.IssueAccess(u.ID, u.Role, biz)
	if err != nil {
		return TokenPair{}, nil, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(ctx, u.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return TokenPair{Access: access, AccessExp: accessExp, Refresh: refresh, RefreshExp: refreshExp}, biz, nil
}
