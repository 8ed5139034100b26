package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/cache"
	"github.com/revline/booking-platform/internal/middleware"
	"github.com/revline/booking-platform/internal/model"
	"github.com/revline/booking-platform/internal/repository"
)

// BusinessStore and ServiceStore are the tenant persistence surfaces.
// *repository.BusinessRepo and *repository.ServiceRepo satisfy them.
type BusinessStore interface {
	Create(ctx context.Context, b model.Business) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Business, error)
	Update(ctx context.Context, b model.Business) error
}

type ServiceStore interface {
	Create(ctx context.Context, s model.Service) (uint64, error)
	ListByBusiness(ctx context.Context, businessID uint64) ([]model.Service, error)
	Delete(ctx context.Context, id, businessID uint64) error
}

var errNoBusiness = apperr.Conflict("create a business first")

// BusinessHandler serves tenant reads through the cache-aside layer and
// triggers tenant-wide invalidation after every mutation.
type BusinessHandler struct {
	Businesses BusinessStore
	Services   ServiceStore
	Users      UserStore
	Cache      *cache.Cache
	Manager    *cache.Manager
}

func NewBusinessHandler(b BusinessStore, s ServiceStore, u UserStore, c *cache.Cache, m *cache.Manager) *BusinessHandler {
	return &BusinessHandler{Businesses: b, Services: s, Users: u, Cache: c, Manager: m}
}

type businessReq struct {
	Name                  string    `json:"name"`
	Address               string    `json:"address"`
	Phone                 string    `json:"phone"`
	LicenseExpirationDate time.Time `json:"license_expiration_date"`
}

type serviceReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  uint32 `json:"price_cents"`
	DurationMin uint32 `json:"duration_min"`
}

// Create registers the owner's business and attaches it to their user row.
// The caller's access token now carries a stale (absent) tenant claim; the
// session middleware rotates it on the next request.
func (h *BusinessHandler) Create(c echo.Context) error {
	if _, exists := c.Get(middleware.CtxBusiness).(uint64); exists {
		return c.JSON(http.StatusConflict, echo.Map{"error": "business already exists"})
	}
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	var req businessReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Businesses.Create(ctx, model.Business{
		OwnerID:               uid,
		Name:                  strings.TrimSpace(req.Name),
		Address:               req.Address,
		Phone:                 req.Phone,
		LicenseExpirationDate: req.LicenseExpirationDate,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create business failed"})
	}
	if err := h.Users.AttachBusiness(ctx, uid, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create business failed"})
	}

	h.Manager.WarmUpTenant(ctx, id)
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Get returns a tenant profile, cache-aside.
func (h *BusinessHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid business id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := cache.GetOrSet(ctx, h.Cache, cache.TenantKey(id, "profile"),
		func(ctx context.Context) (model.Business, error) {
			return h.Businesses.GetByID(ctx, id)
		}, cache.DefaultOptions())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
		}
		return respondAppErr(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Update rewrites the caller's own tenant profile and clears every cache
// region tied to it before re-warming the hot keys.
func (h *BusinessHandler) Update(c echo.Context) error {
	businessID, err := h.ownBusiness(c)
	if err != nil {
		return respondAppErr(c, err)
	}
	if id, perr := strconv.ParseUint(c.Param("id"), 10, 64); perr != nil || id != businessID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req businessReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	current, err := h.Businesses.GetByID(ctx, businessID)
	if err != nil {
		return respondAppErr(c, err)
	}
	current.Name = strings.TrimSpace(req.Name)
	current.Address = req.Address
	current.Phone = req.Phone
	current.LicenseExpirationDate = req.LicenseExpirationDate
	if err := h.Businesses.Update(ctx, current); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	h.Manager.ClearTenantCache(ctx, businessID)
	h.Manager.WarmUpTenant(ctx, businessID)
	return c.JSON(http.StatusOK, current)
}

// ListServices returns the tenant's catalog, cache-aside.
func (h *BusinessHandler) ListServices(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid business id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	services, err := cache.GetOrSet(ctx, h.Cache, cache.TenantKey(id, "services"),
		func(ctx context.Context) ([]model.Service, error) {
			return h.Services.ListByBusiness(ctx, id)
		}, cache.DefaultOptions())
	if err != nil {
		return respondAppErr(c, err)
	}
	return c.JSON(http.StatusOK, services)
}

// CreateService adds a catalog entry and invalidates the tenant cache.
func (h *BusinessHandler) CreateService(c echo.Context) error {
	businessID, err := h.ownBusiness(c)
	if err != nil {
		return respondAppErr(c, err)
	}

	var req serviceReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Services.Create(ctx, model.Service{
		BusinessID:  businessID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		DurationMin: req.DurationMin,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create service failed"})
	}

	h.Manager.ClearTenantCache(ctx, businessID)
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// DeleteService removes a catalog entry and invalidates the tenant cache.
func (h *BusinessHandler) DeleteService(c echo.Context) error {
	businessID, err := h.ownBusiness(c)
	if err != nil {
		return respondAppErr(c, err)
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Services.Delete(ctx, id, businessID); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete service failed"})
	}

	h.Manager.ClearTenantCache(ctx, businessID)
	return c.NoContent(http.StatusNoContent)
}

// CacheStats exposes backend size and latency for operators.
func (h *BusinessHandler) CacheStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Manager.GetCacheStats(ctx)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "cache unavailable"})
	}
	return c.JSON(http.StatusOK, stats)
}

// ownBusiness resolves the caller's tenant from the session context.
func (h *BusinessHandler) ownBusiness(c echo.Context) (uint64, error) {
	businessID, ok := c.Get(middleware.CtxBusiness).(uint64)
	if !ok {
		return 0, errNoBusiness
	}
	return businessID, nil
}
