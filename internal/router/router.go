// Package router assembles the HTTP surface.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-attendance-api/internal/handler"
	"github.com/noah-isme/geo-attendance-api/internal/middleware"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/geo-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/geo-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/geo-attendance-api/pkg/observability"
	"github.com/noah-isme/geo-attendance-api/pkg/ratelimit"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Auth       *handler.AuthHandler
	Session    *handler.SessionHandler
	Attendance *handler.AttendanceHandler
	Device     *handler.DeviceHandler
	Metrics    *handler.MetricsHandler
}

// Options configures the shared middleware stack.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	HTTPMetrics    middleware.HTTPObserver
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	CheckInLimiter *ratelimit.Limiter
	DeviceLimiter  *ratelimit.Limiter
	Now            func() time.Time
}

// New builds the gin engine with every route mounted.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(observability.GinMiddleware())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.HTTPMetrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	auth := middleware.JWT(opts.Tokens)
	staff := middleware.RequireStaff()
	student := middleware.RequireStudent()

	api.POST("/auth/login", h.Auth.Login)
	api.GET("/auth/me", auth, h.Auth.Me)

	sessions := api.Group("/sessions", auth, staff)
	sessions.POST("", h.Session.Create)
	sessions.GET("/:id", h.Session.Get)
	sessions.PATCH("/:id", h.Session.Update)
	sessions.DELETE("/:id", h.Session.Delete)
	sessions.POST("/:id/qr", h.Session.RotateToken)
	sessions.POST("/:id/close", h.Session.Close)
	sessions.GET("/:id/attendances", h.Attendance.ListBySession)
	sessions.GET("/:id/attendances/export",
		middleware.Audit(opts.Audit, opts.Logger, models.AuditActionExport, models.AuditResourceSession, "id"),
		h.Attendance.Export)

	api.GET("/courses/:courseId/sessions", auth, staff, h.Session.ListByCourse)

	api.POST("/check-in", auth, student, middleware.RateLimit(opts.CheckInLimiter, opts.Now), h.Attendance.CheckIn)
	api.GET("/attendance/history", auth, student, h.Attendance.History)
	api.POST("/manual-check-in", auth, staff, h.Attendance.ManualCheckIn)

	api.POST("/device/request", middleware.RateLimit(opts.DeviceLimiter, opts.Now), h.Device.Submit)
	api.GET("/device/request/status/:studentId", h.Device.Status)

	devices := api.Group("/device/requests", auth, staff)
	devices.GET("", h.Device.List)
	devices.GET("/count", h.Device.PendingCount)
	devices.PUT("/:id/approve", h.Device.Approve)
	devices.PUT("/:id/reject", h.Device.Reject)

	return r
}
