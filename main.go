package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ecoenzim-service/config"
	"ecoenzim-service/handlers"
	"ecoenzim-service/middleware"
	"ecoenzim-service/services"
	"ecoenzim-service/store"
	"ecoenzim-service/utils"
	"ecoenzim-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	gormStore := store.NewGormStore(db)
	if err := gormStore.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	photos, err := newPhotoStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize photo storage")
	}

	deps := services.Deps{
		Store:   gormStore,
		Clock:   clockwork.NewRealClock(),
		Logger:  log,
		Metrics: services.NewMetrics(reg),
	}
	svc := handlers.Services{
		Projects: services.NewProjectService(deps),
		Uploads:  services.NewUploadService(deps, photos),
		Claims:   services.NewClaimService(deps),
		Rewards:  services.NewRewardService(deps),
		Users:    services.NewUserService(deps),
		Ledger:   services.NewLedgerService(deps),
	}

	sched, err := services.NewExpirySweeper(deps).StartExpiryScheduler(ctx, cfg.SweepInterval)
	if err != nil {
		log.WithError(err).Fatal("failed to start expiry scheduler")
	}

	if cfg.SyncServiceURL != "" {
		workers.NewUserSyncWorker(svc.Users, cfg.SyncServiceURL, cfg.SyncEndpoint, cfg.SyncToken, cfg.SyncInterval, log).Start(ctx)
	} else {
		log.Warn("⚠️ SYNC_SERVICE_URL not set, user profiles will not be mirrored")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
		Immutable: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupOpsRoutes(app, reg)
	if !cfg.R2.Enabled() {
		app.Static("/uploads", cfg.UploadDir)
	}

	var auth []fiber.Handler
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		auth = []fiber.Handler{middleware.JWTMiddleware(cfg.JWTSecret, log)}
	default:
		auth = []fiber.Handler{
			middleware.GatewayAuthMiddleware(cfg.GatewayToken, log),
			middleware.UserContextMiddleware(log),
		}
	}
	handlers.SetupRoutes(app, svc, log, auth...)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	log.WithFields(logrus.Fields{
		"port":      cfg.Port,
		"auth_mode": cfg.AuthMode,
		"origins":   cfg.AllowedOrigins,
	}).Info("✅ Server running")

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown failed")
	}
	if err := sched.Shutdown(); err != nil {
		log.WithError(err).Warn("scheduler shutdown failed")
	}
}

func newPhotoStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (services.PhotoStore, error) {
	if cfg.R2.Enabled() {
		log.WithField("bucket", cfg.R2.Bucket).Info("storing photos in R2")
		return utils.NewR2Store(ctx, cfg.R2)
	}
	log.WithField("dir", cfg.UploadDir).Info("storing photos on local disk")
	return utils.NewLocalStore(cfg.UploadDir, "/uploads")
}
