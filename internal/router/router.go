// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/revline/booking-platform/internal/auth"
	"github.com/revline/booking-platform/internal/config"
	"github.com/revline/booking-platform/internal/handler"
	"github.com/revline/booking-platform/internal/middleware"
	"github.com/revline/booking-platform/internal/model"
)

// Register wires every route. Unauthenticated auth flows live under
// /v1/auth; everything else sits behind the session gate.
func Register(
	e *echo.Echo,
	cfg config.Config,
	rdb *redis.Client,
	sessions *auth.Sessions,
	users auth.UserStore,
	a *handler.AuthHandler,
	w *handler.WorkerHandler,
	b *handler.BusinessHandler,
) {
	e.GET("/healthz", handler.Health)

	limited := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	// Credential and link-driven flows; no session required.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limited)
	g.POST("/login", a.Login, limited)
	g.GET("/verify-account", a.VerifyAccount)
	g.POST("/resend-verification", a.ResendVerification, limited)
	g.POST("/forgot-password", a.ForgotPassword, limited)
	g.POST("/set-password", a.SetPassword)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	// Everything below requires a live session.
	v1 := e.Group("/v1")
	v1.Use(middleware.Session(sessions, users, cfg.IsProd()))

	v1.POST("/auth/logout-all", a.LogoutAll)

	v1.GET("/businesses/:id", b.Get)
	v1.GET("/businesses/:id/services", b.ListServices)

	owner := v1.Group("", middleware.RequireRole(model.RoleOwner))
	owner.POST("/businesses", b.Create)
	owner.PUT("/businesses/:id", b.Update)
	owner.POST("/services", b.CreateService)
	owner.DELETE("/services/:id", b.DeleteService)
	owner.GET("/cache/stats", b.CacheStats)

	owner.POST("/workers", w.Invite)
	owner.POST("/workers/:id/resend-welcome", w.ResendWelcome)
	owner.POST("/workers/:id/suspend", w.Suspend)
	owner.POST("/workers/:id/reactivate", w.Reactivate)
}
