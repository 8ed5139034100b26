package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/revline/booking-platform/internal/auth"
	"github.com/revline/booking-platform/internal/cache"
	"github.com/revline/booking-platform/internal/config"
	"github.com/revline/booking-platform/internal/database"
	"github.com/revline/booking-platform/internal/handler"
	"github.com/revline/booking-platform/internal/notifier"
	"github.com/revline/booking-platform/internal/queue"
	"github.com/revline/booking-platform/internal/repository"
	"github.com/revline/booking-platform/internal/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("database connect failed")
	}
	defer db.Close()

	// Redis is optional: a nil client disables caching and rate limiting,
	// every read falls back to the database.
	rdb := config.NewRedisClient()
	var store cache.Store
	if rdb != nil {
		store = cache.NewRedisStore(rdb)
	}
	tenantCache := cache.New(store, config.LoadCacheConfig())

	users := repository.NewUserRepo(db)
	refreshTokens := repository.NewRefreshTokenRepo(db)
	verificationTokens := repository.NewVerificationTokenRepo(db)
	businesses := repository.NewBusinessRepo(db)
	services := repository.NewServiceRepo(db)

	issuer := auth.NewIssuer(cfg, refreshTokens)
	sessions := auth.NewSessions(issuer, users, businesses)
	verifier := auth.NewVerifier(verificationTokens, time.Duration(cfg.VerifyTTLMin)*time.Minute)
	manager := cache.NewManager(tenantCache, businesses, services)
	mail := notifier.NewRabbitNotifier()

	authH := handler.NewAuthHandler(cfg, users, sessions, verifier, mail)
	workerH := handler.NewWorkerHandler(cfg, users, sessions, verifier, mail)
	businessH := handler.NewBusinessHandler(businesses, services, users, tenantCache, manager)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, rdb, sessions, users, authH, workerH, businessH)

	// Drain outbound email events in the background; the loop reconnects on
	// broker failures and never takes the server down.
	go func() {
		if err := queue.StartEmailConsumer(); err != nil {
			logrus.WithError(err).Error("email consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	if err := e.Start(addr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
