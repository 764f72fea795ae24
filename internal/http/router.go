package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/seglab/segcase-backend/internal/http/handlers"
	"github.com/seglab/segcase-backend/internal/http/middleware"
	"github.com/seglab/segcase-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *middleware.AuthMiddleware
	HealthHandler  *handlers.HealthHandler
	AuthHandler    *handlers.AuthHandler
	CaseHandler    *handlers.CaseHandler
	AllowOrigins   []string
	ServiceName    string
	// UploadsRoot, when set, is served read-only under /uploads so the
	// presentation layer can fetch staged images and masks.
	UploadsRoot string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	if cfg.Log != nil {
		router.Use(middleware.RequestLog(cfg.Log))
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:4200"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	if cfg.UploadsRoot != "" {
		router.Static("/uploads", cfg.UploadsRoot)
	}

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", cfg.AuthHandler.Register)
		auth.POST("/login", cfg.AuthHandler.Login)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protectedAuth.POST("/refresh", cfg.AuthHandler.Refresh)
		protectedAuth.POST("/logout", cfg.AuthHandler.Logout)
		protectedAuth.GET("/profile", cfg.AuthHandler.GetProfile)
		protectedAuth.PUT("/profile", cfg.AuthHandler.UpdateProfile)
	}

	cases := api.Group("/cases")
	cases.Use(cfg.AuthMiddleware.RequireAuth())
	{
		cases.POST("", cfg.CaseHandler.Create)
		cases.GET("", cfg.CaseHandler.List)
		cases.GET("/:caseId", cfg.CaseHandler.Get)
		cases.DELETE("/:caseId", cfg.CaseHandler.Delete)
		cases.POST("/:caseId/upload", cfg.CaseHandler.Upload)
		cases.POST("/:caseId/segment", cfg.CaseHandler.Segment)
	}

	return router
}
