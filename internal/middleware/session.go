// Package middleware provides the request-time session gate and shared
// request guards (roles, rate limiting) for the HTTP layer.
package middleware

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/revline/booking-platform/internal/auth"
	"github.com/revline/booking-platform/internal/model"
)

// Context keys populated for downstream handlers.
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxBusiness = "business"
	CtxUser     = "user"
)

// Session returns the request-time gate over the two cookie artifacts. The
// decision table:
//
//	no access, no refresh            -> 401 "no tokens"
//	no access, refresh present       -> 401, clear cookies (tamper-equivalent,
//	                                    never silently refreshed)
//	access valid, claims fresh       -> proceed
//	access expired, refresh valid    -> rotate, set new cookies, proceed
//	access expired, refresh invalid  -> 401, clear cookies
//	access tampered                  -> 401, clear cookies
//	access valid, tenant claim stale -> rotate when a refresh cookie exists,
//	                                    else 401 "no refresh token to update claims"
//
// Independently of the table, an access token issued before the user's last
// password change is rejected regardless of signature validity; this is how
// logout-everywhere propagates without a token blacklist.
func Session(sessions *auth.Sessions, users auth.UserStore, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accessC, accessErr := c.Cookie(AccessCookie)
			refreshC, refreshErr := c.Cookie(RefreshCookie)
			hasAccess := accessErr == nil && accessC.Value != ""
			hasRefresh := refreshErr == nil && refreshC.Value != ""

			if !hasAccess && !hasRefresh {
				return unauthorized(c, "no tokens")
			}
			if !hasAccess {
				// a refresh cookie without an access cookie never happens in
				// a well-behaved client; treat as manipulation
				ClearAuthCookies(c, secure)
				return unauthorized(c, "missing access token")
			}

			claims, parseErr := sessions.Issuer().ParseAccess(accessC.Value)
			switch {
			case parseErr == nil:
				// fall through to the freshness checks below
			case errors.Is(parseErr, auth.ErrAccessExpired):
				if !hasRefresh {
					ClearAuthCookies(c, secure)
					return unauthorized(c, "session expired")
				}
				u, pair, err := sessions.Rotate(c.Request().Context(), refreshC.Value)
				if err != nil {
					ClearAuthCookies(c, secure)
					return unauthorized(c, "session expired")
				}
				SetAuthCookies(c, pair, secure)
				return proceed(c, next, u)
			default:
				ClearAuthCookies(c, secure)
				return unauthorized(c, "possible token manipulation")
			}

			ctx := c.Request().Context()
			u, err := users.GetByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					ClearAuthCookies(c, secure)
					return unauthorized(c, "unknown user")
				}
				logrus.WithError(err).Error("session: user lookup failed")
				return echo.NewHTTPError(http.StatusInternalServerError)
			}
			if u.Role == model.RoleSuspended {
				ClearAuthCookies(c, secure)
				return unauthorized(c, "account suspended")
			}
			if u.LastPasswordChange != nil && u.LastPasswordChange.After(claims.IssuedAt) {
				ClearAuthCookies(c, secure)
				return unauthorized(c, "password changed, login required")
			}

			// tenant claim staleness: the token's view of "has a business"
			// must match the store
			if (claims.Business != nil) != (u.BusinessID != nil) {
				if !hasRefresh {
					ClearAuthCookies(c, secure)
					return unauthorized(c, "no refresh token to update claims")
				}
				ru, pair, err := sessions.Rotate(ctx, refreshC.Value)
				if err != nil {
					ClearAuthCookies(c, secure)
					return unauthorized(c, "session expired")
				}
				SetAuthCookies(c, pair, secure)
				return proceed(c, next, ru)
			}

			return proceed(c, next, u)
		}
	}
}

func proceed(c echo.Context, next echo.HandlerFunc, u model.User) error {
	c.Set(CtxUserID, u.ID)
	c.Set(CtxRole, u.Role)
	c.Set(CtxUser, u)
	if u.BusinessID != nil {
		c.Set(CtxBusiness, *u.BusinessID)
	}
	return next(c)
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
}
