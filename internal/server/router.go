package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/internal/handler"
	"github.com/noah-isme/voice-attendance-api/internal/middleware"
	"github.com/noah-isme/voice-attendance-api/internal/service"
	"github.com/noah-isme/voice-attendance-api/pkg/config"
	"github.com/noah-isme/voice-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/voice-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/voice-attendance-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Classes    *handler.ClassHandler
	Students   *handler.StudentHandler
	Attendance *handler.AttendanceHandler
	Metrics    *handler.MetricsHandler
}

// NewRouter builds the gin engine with the middleware chain and all routes.
func NewRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	classes := api.Group("/classes")
	classes.GET("", h.Classes.List)
	classes.POST("", h.Classes.Create)
	classes.GET("/:id/sections", h.Classes.Sections)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Enroll)
	students.GET("/export", h.Students.Export)
	students.GET("/:id", h.Students.Get)

	attendance := api.Group("/attendance")
	attendance.GET("", h.Attendance.List)
	attendance.DELETE("", h.Attendance.Clear)
	attendance.POST("/identify", h.Attendance.Identify)
	attendance.POST("/manual", h.Attendance.Manual)
	attendance.GET("/export", h.Attendance.Export)

	return r
}
