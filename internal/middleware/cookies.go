package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revline/booking-platform/internal/auth"
)

// Cookie names for the two session artifacts.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// SetAuthCookies writes both token cookies with the session attribute
// policy: httpOnly, SameSite=Strict, Secure outside dev. The access cookie
// max-age matches the token's exp claim so the two never drift apart.
func SetAuthCookies(c echo.Context, pair auth.TokenPair, secure bool) {
	c.SetCookie(authCookie(AccessCookie, pair.Access, pair.AccessExp, secure))
	c.SetCookie(authCookie(RefreshCookie, pair.Refresh, pair.RefreshExp, secure))
}

// ClearAuthCookies expires both token cookies, forcing a fresh login.
func ClearAuthCookies(c echo.Context, secure bool) {
	expired := time.Unix(0, 0)
	c.SetCookie(authCookie(AccessCookie, "", expired, secure))
	c.SetCookie(authCookie(RefreshCookie, "", expired, secure))
}

func authCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		ck.MaxAge = -1
	}
	return ck
}
