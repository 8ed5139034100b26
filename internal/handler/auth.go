package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/auth"
	"github.com/revline/booking-platform/internal/config"
	"github.com/revline/booking-platform/internal/middleware"
	"github.com/revline/booking-platform/internal/model"
	"github.com/revline/booking-platform/internal/notifier"
	"github.com/revline/booking-platform/internal/repository"
	"github.com/revline/booking-platform/internal/utils"
)

// UserStore is the user persistence surface the auth handlers need.
// *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, role string, businessID *uint64) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string, changedAt time.Time) error
	UpdateRole(ctx context.Context, id uint64, role string) error
	AttachBusiness(ctx context.Context, userID, businessID uint64) error
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions *auth.Sessions
	Verifier *auth.Verifier
	Notifier notifier.Notifier
}

func NewAuthHandler(cfg config.Config, users UserStore, s *auth.Sessions, v *auth.Verifier, n notifier.Notifier) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Sessions: s, Verifier: v, Notifier: n}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type emailReq struct {
	Email string `json:"email"`
}
type setPasswordReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
type loginResp struct {
	User     model.User `json:"user"`
	Redirect string     `json:"redirect"`
}

// Register creates an owner account and emails a verification link.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password (min 8 chars) required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	uid, err := h.Users.Create(ctx, req.Email, hash, model.RoleOwner, nil)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	h.sendVerification(ctx, uid, req.Email)

	return c.JSON(http.StatusCreated, echo.Map{
		"id":      uid,
		"email":   req.Email,
		"message": "verification email sent",
	})
}

// VerifyAccount consumes an account verification token from the emailed
// link.
func (h *AuthHandler) VerifyAccount(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("token"))
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tok, err := h.Verifier.Validate(ctx, raw, model.PurposeAccountVerification)
	if err != nil {
		return respondAppErr(c, err)
	}
	if err := h.Verifier.Consume(ctx, tok); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

// ResendVerification replaces the pending verification token and re-sends
// the link. Responds 204 regardless of whether the account exists.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err == nil {
		h.sendVerification(ctx, u.ID, u.Email)
	}
	return c.NoContent(http.StatusNoContent)
}

// Login verifies credentials, sets both session cookies and returns the
// post-login redirect: /bookings for an actively licensed business, /setup
// otherwise.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, pair, redirect, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondAppErr(c, err)
	}
	middleware.SetAuthCookies(c, pair, h.Cfg.IsProd())
	return c.JSON(http.StatusOK, loginResp{User: u, Redirect: redirect})
}

// Refresh explicitly rotates the refresh token and re-issues both cookies.
// The session middleware does the same transparently; this endpoint exists
// for clients that want to renew ahead of expiry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ck, err := c.Cookie(middleware.RefreshCookie)
	if err != nil || ck.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, pair, err := h.Sessions.Rotate(ctx, ck.Value)
	if err != nil {
		middleware.ClearAuthCookies(c, h.Cfg.IsProd())
		return respondAppErr(c, err)
	}
	middleware.SetAuthCookies(c, pair, h.Cfg.IsProd())
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// Logout revokes the presented refresh token and clears both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if ck, err := c.Cookie(middleware.RefreshCookie); err == nil && ck.Value != "" {
		if err := h.Sessions.Logout(ctx, ck.Value); err != nil {
			logrus.WithError(err).Debug("logout: refresh revoke failed")
		}
	}
	middleware.ClearAuthCookies(c, h.Cfg.IsProd())
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every refresh token for the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	uid, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Sessions.LogoutAll(ctx, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	middleware.ClearAuthCookies(c, h.Cfg.IsProd())
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword issues a password reset token. Responds 204 regardless of
// whether the account exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err == nil && u.Role != model.RoleSuspended {
		raw, gerr := h.Verifier.Generate(ctx, u.ID, model.PurposePasswordReset)
		if gerr != nil {
			logrus.WithError(gerr).Error("forgot-password: token generate failed")
		} else if nerr := h.Notifier.SendPasswordReset(ctx, u.Email, notifier.SetPasswordLink(h.Cfg.FrontendURL, raw)); nerr != nil {
			logrus.WithError(nerr).Warn("forgot-password: email send failed")
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// SetPassword consumes a password_reset or worker_welcome token, stores the
// new password and revokes every outstanding session. The bumped
// last_password_change timestamp also invalidates access tokens issued
// before the change.
func (h *AuthHandler) SetPassword(c echo.Context) error {
	var req setPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Token) == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and password (min 8 chars) required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tok, err := h.Verifier.Validate(ctx, strings.TrimSpace(req.Token),
		model.PurposePasswordReset, model.PurposeWorkerWelcome)
	if err != nil {
		return respondAppErr(c, err)
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "set password failed"})
	}
	if err := h.Users.UpdatePassword(ctx, tok.UserID, hash, time.Now().UTC()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "set password failed"})
	}
	if err := h.Sessions.LogoutAll(ctx, tok.UserID); err != nil {
		logrus.WithError(err).WithField("user_id", tok.UserID).Warn("set-password: session revoke failed")
	}
	if err := h.Verifier.Consume(ctx, tok); err != nil {
		logrus.WithError(err).Warn("set-password: token consume failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

func (h *AuthHandler) sendVerification(ctx context.Context, userID uint64, email string) {
	raw, err := h.Verifier.Generate(ctx, userID, model.PurposeAccountVerification)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("verification token generate failed")
		return
	}
	if err := h.Notifier.SendAccountVerification(ctx, email, notifier.VerifyLink(h.Cfg.FrontendURL, raw)); err != nil {
		logrus.WithError(err).Warn("verification email send failed")
	}
}

// reqCtx bounds every store call to a per-request timeout.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// respondAppErr maps typed application errors onto JSON responses; untyped
// errors become 500s.
func respondAppErr(c echo.Context, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return c.JSON(ae.Status, echo.Map{"error": ae.Message, "code": ae.Code})
	}
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	logrus.WithError(err).Error("unhandled error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
