package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/auth"
	"github.com/revline/booking-platform/internal/config"
	"github.com/revline/booking-platform/internal/middleware"
	"github.com/revline/booking-platform/internal/model"
	"github.com/revline/booking-platform/internal/notifier"
	"github.com/revline/booking-platform/internal/repository"
)

// WorkerHandler implements owner-side staff management: invites, suspension
// and reactivation.
type WorkerHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions *auth.Sessions
	Verifier *auth.Verifier
	Notifier notifier.Notifier
}

func NewWorkerHandler(cfg config.Config, users UserStore, s *auth.Sessions, v *auth.Verifier, n notifier.Notifier) *WorkerHandler {
	return &WorkerHandler{Cfg: cfg, Users: users, Sessions: s, Verifier: v, Notifier: n}
}

type inviteReq struct {
	Email string `json:"email"`
}

// Invite creates a worker account without a password, attached to the
// owner's business, and emails a welcome link through which the worker sets
// their first password.
func (h *WorkerHandler) Invite(c echo.Context) error {
	businessID, ok := c.Get(middleware.CtxBusiness).(uint64)
	if !ok {
		return c.JSON(http.StatusConflict, echo.Map{"error": "create a business first"})
	}

	var req inviteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, "", model.RoleWorker, &businessID)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invite failed"})
	}

	raw, err := h.Verifier.Generate(ctx, uid, model.PurposeWorkerWelcome)
	if err != nil {
		logrus.WithError(err).WithField("user_id", uid).Error("worker invite: token generate failed")
	} else if nerr := h.Notifier.SendWorkerWelcome(ctx, req.Email, notifier.SetPasswordLink(h.Cfg.FrontendURL, raw)); nerr != nil {
		logrus.WithError(nerr).Warn("worker invite: email send failed")
	}

	return c.JSON(http.StatusCreated, echo.Map{"id": uid, "email": req.Email})
}

// ResendWelcome replaces a pending welcome token for a worker who lost the
// original link. The old token is already gone or replaced either way, so a
// fresh one is always issued.
func (h *WorkerHandler) ResendWelcome(c echo.Context) error {
	worker, err := h.ownWorker(c)
	if err != nil {
		return respondAppErr(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	raw, gerr := h.Verifier.Generate(ctx, worker.ID, model.PurposeWorkerWelcome)
	if gerr != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resend failed"})
	}
	if nerr := h.Notifier.SendWorkerWelcome(ctx, worker.Email, notifier.SetPasswordLink(h.Cfg.FrontendURL, raw)); nerr != nil {
		logrus.WithError(nerr).Warn("worker resend: email send failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Suspend transitions a worker to SUSPENDED, revokes their sessions and
// notifies them. The transition is reversible via Reactivate.
func (h *WorkerHandler) Suspend(c echo.Context) error {
	worker, err := h.ownWorker(c)
	if err != nil {
		return respondAppErr(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.UpdateRole(ctx, worker.ID, model.RoleSuspended); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "suspend failed"})
	}
	if err := h.Sessions.LogoutAll(ctx, worker.ID); err != nil {
		logrus.WithError(err).WithField("user_id", worker.ID).Warn("suspend: session revoke failed")
	}
	if err := h.Notifier.SendWorkerSuspended(ctx, worker.Email); err != nil {
		logrus.WithError(err).Warn("suspend: email send failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Reactivate transitions a suspended worker back to WORKER.
func (h *WorkerHandler) Reactivate(c echo.Context) error {
	worker, err := h.ownWorker(c)
	if err != nil {
		return respondAppErr(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.UpdateRole(ctx, worker.ID, model.RoleWorker); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reactivate failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ownWorker loads the :id path param and checks it is a worker of the
// caller's business.
func (h *WorkerHandler) ownWorker(c echo.Context) (model.User, error) {
	businessID, ok := c.Get(middleware.CtxBusiness).(uint64)
	if !ok {
		return model.User{}, apperr.Validation("create a business first")
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return model.User{}, apperr.Validation("invalid worker id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	worker, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, apperr.NotFound("worker not found")
		}
		return model.User{}, err
	}
	if worker.Role == model.RoleOwner || worker.BusinessID == nil || *worker.BusinessID != businessID {
		return model.User{}, apperr.NotFound("worker not found")
	}
	return worker, nil
}
