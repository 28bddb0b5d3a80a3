package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ai-data-analyst/internal/bootstrap"
	"ai-data-analyst/internal/metrics"
	"ai-data-analyst/internal/transport/http/handler"
	"ai-data-analyst/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(app.Logger),
		metrics.Middleware(),
		cors.New(corsConfig(app.Config.App.AllowedOrigins)),
	)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", metrics.Handler())

	authHandler := handler.NewAuthHandler(app.Auth)
	datasetHandler := handler.NewDatasetHandler(app.Datasets, int64(app.Config.Upload.MaxSizeMB)<<20)
	chatHandler := handler.NewChatHandler(app.Analyst)
	chartHandler := handler.NewChartHandler(app.Charts)
	requireAuth := middleware.AuthJWT(app.Config.Auth.JWTSecret)
	limiter := middleware.NewRateLimiter(app.Config.RateLimit.RequestsPerMinute, app.Config.RateLimit.Burst)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/token", authHandler.Token)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	datasetGroup := v1.Group("/datasets", requireAuth)
	datasetGroup.GET("", datasetHandler.List)
	datasetGroup.GET("/:id/history", datasetHandler.History)
	datasetGroup.GET("/:id/query-logs", datasetHandler.QueryLogs)
	datasetGroup.DELETE("/:id", datasetHandler.Delete)

	v1.POST("/data/upload", requireAuth, datasetHandler.Upload)
	v1.POST("/query/chat", requireAuth, limiter.Middleware(), chatHandler.Ask)

	chartGroup := v1.Group("/charts/datasets/:id/charts", requireAuth)
	chartGroup.POST("", chartHandler.Save)
	chartGroup.GET("", chartHandler.List)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
