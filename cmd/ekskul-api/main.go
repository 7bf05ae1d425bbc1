package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/noah-isme/ekskul-api/api/swagger"
	"github.com/noah-isme/ekskul-api/internal/handler"
	"github.com/noah-isme/ekskul-api/internal/middleware"
	"github.com/noah-isme/ekskul-api/internal/repository"
	"github.com/noah-isme/ekskul-api/internal/service"
	"github.com/noah-isme/ekskul-api/pkg/cache"
	"github.com/noah-isme/ekskul-api/pkg/config"
	"github.com/noah-isme/ekskul-api/pkg/database"
	"github.com/noah-isme/ekskul-api/pkg/jobs"
	"github.com/noah-isme/ekskul-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ekskul-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ekskul-api/pkg/middleware/requestid"
)

// @title Ekskul API
// @version 1.0.0
// @description Extracurricular activities, events, attendance points and leaderboard
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB, "up"); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	eventRepo := repository.NewEventRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var cacheRepo service.CacheRepository
	if cfg.CatalogCache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("catalog cache disabled, redis unavailable", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, "ekskul", logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.CatalogCache.TTL, logr, cfg.CatalogCache.Enabled)

	notifications := service.NewNotificationService(notificationRepo, activityRepo, metrics, logr)
	notifications.StartDispatcher(ctx, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	defer notifications.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:       cfg.JWT.Secret,
		AccessTokenExpiry:       cfg.JWT.Expiration,
		Issuer:                  cfg.JWT.Issuer,
		GatePendingRegistration: cfg.Auth.GatePendingRegistration,
		BcryptCost:              bcrypt.DefaultCost,
	})
	activitySvc := service.NewActivityService(activityRepo, eventRepo, cacheSvc, notifications, metrics, validate, logr)
	eventSvc := service.NewEventService(eventRepo, activityRepo, cacheSvc, notifications, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, eventRepo, userRepo, eventSvc, cacheSvc, metrics, validate, logr)
	insightSvc := service.NewInsightService(activityRepo, eventRepo, userRepo, logr)
	userSvc := service.NewUserService(userRepo, activityRepo, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	health := handler.NewHealthHandler(metrics, db)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Activities:    handler.NewActivityHandler(activitySvc, insightSvc),
		Events:        handler.NewEventHandler(eventSvc, attendanceSvc, insightSvc),
		Notifications: handler.NewNotificationHandler(notifications),
		Users:         handler.NewUserHandler(userSvc, eventSvc, insightSvc),
	}, handler.RouteDeps{Tokens: authSvc, Audit: userRepo, Logger: logr})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
