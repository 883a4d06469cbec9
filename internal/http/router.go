package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/config"
	"github.com/reliefroute/backend/internal/http/handlers"
	"github.com/reliefroute/backend/internal/http/middleware"
	"github.com/reliefroute/backend/internal/metrics"
	"github.com/reliefroute/backend/internal/service"

	_ "github.com/reliefroute/backend/docs"
)

// App is what the router serves.
type App struct {
	Store      service.Repository
	Processing *service.ProcessingService
	Weights    *service.WeightStore
	Recomputer *service.Recomputer
	Anomalies  *service.AnomalyScanner
}

func Router(cfg config.Config, app App, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "" || cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = splitOrigins(cfg.CORSAllowed)
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:      app.Store,
		Processing: app.Processing,
		Weights:    app.Weights,
		Recomputer: app.Recomputer,
		Anomalies:  app.Anomalies,
		Validator:  ai.NewValidator(),
		Logger:     logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/requests", h.CreateRequest)
		api.GET("/requests", h.ListRequests)
		api.GET("/requests/:id", h.GetRequest)
		api.POST("/requests/:id/assign", h.AssignRequest)
		api.PATCH("/requests/:id/status", h.UpdateStatus)
		api.GET("/responders", h.ListResponders)
		api.POST("/responders", h.UpsertResponder)
		api.POST("/classify", h.Classify)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/process", h.Process)
		admin.GET("/weights", h.GetWeights)
		admin.POST("/weights/recompute", h.RecomputeWeights)
		admin.POST("/reliability/recompute", h.RecomputeReliability)
		admin.GET("/anomalies", h.ListAnomalies)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
