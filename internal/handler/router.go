package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/makkenzo/key-service-api/internal/handler/dto"
	"github.com/makkenzo/key-service-api/internal/handler/middleware"
	"github.com/makkenzo/key-service-api/internal/service"
)

type RouterDeps struct {
	KeyService     *service.KeyService
	AuthService    *service.AuthService
	Health         *HealthHandler
	MetricsHandler http.Handler
	CORSOrigins    []string
	Logger         *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	appLogger := deps.Logger

	keyHandler := NewKeyHandler(deps.KeyService, appLogger)
	authHandler := NewAuthHandler(deps.AuthService, appLogger)

	adminMiddleware := middleware.AdminAuthMiddleware(deps.AuthService, appLogger)
	keyAuthMiddleware := middleware.KeyAuthMiddleware(deps.KeyService, appLogger)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(middleware.RequestID())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appLogger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.APIErrorResponse{
			Code:      "INTERNAL_ERROR",
			Message:   "An unexpected error occurred.",
			RequestID: middleware.GetRequestID(c),
		})
	}))

	router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	router.Use(middleware.ErrorHandlerMiddleware(appLogger))

	router.GET("/", Index)
	if deps.Health != nil {
		router.GET("/healthz", deps.Health.Check)
	}
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/auth/token", authHandler.Token)
		apiV1.GET("/access", keyAuthMiddleware, keyHandler.Access)
		apiV1.GET("/stats", adminMiddleware, keyHandler.Stats)

		keyRoutes := apiV1.Group("/keys")
		{
			keyRoutes.POST("/validate", keyHandler.Validate)
			keyRoutes.GET("/:key", keyHandler.Get)

			keyRoutes.POST("", adminMiddleware, keyHandler.Create)
			keyRoutes.GET("", adminMiddleware, keyHandler.List)
			keyRoutes.DELETE("/:key", adminMiddleware, keyHandler.Revoke)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-API-Key",
			"X-Request-ID",
		},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
