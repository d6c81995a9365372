package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/packing-qr-api/internal/handler"
	"github.com/noah-isme/packing-qr-api/internal/middleware"
	"github.com/noah-isme/packing-qr-api/internal/models"
	"github.com/noah-isme/packing-qr-api/internal/service"
	"github.com/noah-isme/packing-qr-api/pkg/config"
	"github.com/noah-isme/packing-qr-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/packing-qr-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/packing-qr-api/pkg/middleware/requestid"
)

type routerDeps struct {
	shipments *handler.ShipmentHandler
	articles  *handler.ArticleHandler
	codes     *handler.CodeHandler
	downloads *handler.DownloadHandler
	metrics   *handler.MetricsHandler
	metricSvc *service.MetricsService
	verifier  middleware.ActorVerifier
	audit     middleware.AuditRecorder
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metricSvc, "/metrics", "/health", "/ready"))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)
	r.GET("/metrics/summary", deps.metrics.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta(), middleware.OptionalJWT(deps.verifier))
	requireActor := middleware.JWT(deps.verifier)

	shipments := api.Group("/shipments")
	shipments.POST("", deps.shipments.Intake)
	shipments.GET("", deps.shipments.List)
	shipments.GET("/:code", deps.shipments.Get)
	shipments.PATCH("/:code", requireActor, deps.shipments.Correct)
	shipments.POST("/:code/codes", deps.shipments.IssueAll)
	shipments.POST("/:code/export", deps.shipments.Export)
	shipments.GET("/:code/stats", deps.shipments.Stats)

	articles := api.Group("/articles")
	articles.POST("/:id/codes", deps.articles.Issue)
	articles.GET("/:id/codes", deps.articles.Codes)
	articles.GET("/:id/cartons", deps.articles.Cartons)
	articles.PUT("/:id/image", deps.articles.UpdateImage)
	articles.DELETE("/:id", requireActor, deps.articles.Delete)

	codes := api.Group("/codes")
	codes.POST("/scan", deps.codes.Scan)
	codes.GET("/verify", deps.codes.Verify)
	codes.GET("/duplicates", deps.codes.Duplicates)
	codes.GET("/stats", deps.codes.Stats)
	codes.POST("/:id/regenerate", deps.codes.Regenerate)

	api.GET("/export/:token",
		middleware.Audit(deps.audit, logr, models.AuditActionDownload, "document", "token"),
		deps.downloads.Download)

	return r
}
