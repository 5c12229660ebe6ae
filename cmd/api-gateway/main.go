package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/geo-attendance-api/api/swagger"
	"github.com/noah-isme/geo-attendance-api/internal/handler"
	"github.com/noah-isme/geo-attendance-api/internal/repository"
	"github.com/noah-isme/geo-attendance-api/internal/router"
	"github.com/noah-isme/geo-attendance-api/internal/service"
	"github.com/noah-isme/geo-attendance-api/pkg/cache"
	"github.com/noah-isme/geo-attendance-api/pkg/config"
	"github.com/noah-isme/geo-attendance-api/pkg/database"
	"github.com/noah-isme/geo-attendance-api/pkg/logger"
	"github.com/noah-isme/geo-attendance-api/pkg/observability"
	"github.com/noah-isme/geo-attendance-api/pkg/ratelimit"
)

// @title Geo Attendance API
// @version 1.0.0
// @description QR and geofence based class attendance with device binding
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	flush, err := observability.InitSentry(cfg)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(ctx, db.DB); err != nil {
			logr.Fatal("run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	deviceRepo := repository.NewDeviceRequestRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tx := repository.NewTxRunner(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "geo-attendance", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	audit := service.NewAuditService(auditRepo, cfg.Audit, metrics, logr)
	audit.Start(ctx)
	defer audit.Stop()

	exportLoc, err := time.LoadLocation(cfg.Attendance.ExportTimezone)
	if err != nil {
		logr.Warn("unknown export timezone, using UTC", zap.String("timezone", cfg.Attendance.ExportTimezone), zap.Error(err))
		exportLoc = time.UTC
	}

	sessionSvc := service.NewSessionService(sessionRepo, attendanceRepo, tx, service.NewTokenIssuer(cfg.Attendance), audit, metrics, cfg.Attendance, validate, logr)
	checkInSvc := service.NewCheckInService(sessionRepo, attendanceRepo, metrics, logr)
	attendanceSvc := service.NewAttendanceService(sessionSvc, attendanceRepo, userRepo, service.NewExportService(nil, exportLoc, logr), audit, validate, logr)
	deviceSvc := service.NewDeviceService(deviceRepo, userRepo, tx, cacheSvc, audit, metrics, validate, logr)
	authSvc := service.NewAuthService(userRepo, deviceSvc, audit, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	var checkInLimiter, deviceLimiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		store := limiterStore(redisClient)
		checkInLimiter = ratelimit.New(store, "checkin", cfg.RateLimit.CheckInPerMinute, time.Minute, logr)
		deviceLimiter = ratelimit.New(store, "device", cfg.RateLimit.DeviceReqPerMinute, time.Minute, logr)
	}

	clock := handler.Clock(time.Now)
	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		HTTPMetrics:    metrics,
		Tokens:         authSvc,
		Audit:          audit,
		CheckInLimiter: checkInLimiter,
		DeviceLimiter:  deviceLimiter,
		Now:            time.Now,
	}, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc, clock),
		Session:    handler.NewSessionHandler(sessionSvc, clock),
		Attendance: handler.NewAttendanceHandler(checkInSvc, attendanceSvc, clock),
		Device:     handler.NewDeviceHandler(deviceSvc, clock),
		Metrics:    handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			observability.CaptureErr(err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// limiterStore shares Redis counters across replicas when available and falls
// back to per-process counters otherwise.
func limiterStore(client *redis.Client) ratelimit.Store {
	if client == nil {
		return ratelimit.NewMemoryStore(0)
	}
	return ratelimit.NewRedisStore(client)
}
