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

	_ "github.com/noah-isme/packing-qr-api/api/swagger"
	"github.com/noah-isme/packing-qr-api/internal/handler"
	"github.com/noah-isme/packing-qr-api/internal/repository"
	"github.com/noah-isme/packing-qr-api/internal/service"
	"github.com/noah-isme/packing-qr-api/pkg/cache"
	"github.com/noah-isme/packing-qr-api/pkg/config"
	"github.com/noah-isme/packing-qr-api/pkg/database"
	"github.com/noah-isme/packing-qr-api/pkg/export"
	"github.com/noah-isme/packing-qr-api/pkg/jobs"
	"github.com/noah-isme/packing-qr-api/pkg/logger"
	"github.com/noah-isme/packing-qr-api/pkg/qrcode"
	"github.com/noah-isme/packing-qr-api/pkg/storage"
)

// @title Packing QR API
// @version 1.0.0
// @description Carton label issuance, scanning and label-sheet export for packing lists.
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cacheRepo.Enabled())

	txManager := database.NewTxManager(db)
	shipmentRepo := repository.NewShipmentRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	cartonRepo := repository.NewCartonRepository(db)
	qrRepo := repository.NewQRRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	imageOpts := qrcode.ImageOptions{
		Width:      cfg.QR.Width,
		Margin:     cfg.QR.Margin,
		DarkColor:  cfg.QR.DarkColor,
		LightColor: cfg.QR.LightColor,
	}
	imageStore, err := storage.NewLocalStorage(cfg.QR.ImageDir)
	if err != nil {
		logr.Fatal("failed to prepare image directory", zap.Error(err))
	}
	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare document directory", zap.Error(err))
	}

	engine := service.NewQRService(txManager, articleRepo, cartonRepo, qrRepo, qrcode.NewGenerator(),
		service.QRServiceConfig{Format: "png", Size: imageOpts.Width}, validate, logr)
	issuer := service.NewInstrumentedIssuer(engine, metricsSvc, logr)

	breakerCfg := export.BreakerConfig{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}
	pdfBackend := export.NewBreakerBackend(export.NewPDFBackend(), breakerCfg, logr)
	backends := []export.Backend{
		pdfBackend,
		export.NewBreakerBackend(export.NewHTMLBackend(), breakerCfg, logr),
	}
	documentSvc := service.NewDocumentService(qrRepo, imageStore, backends, export.NewCSVExporter(),
		export.PageOptions{Format: cfg.Documents.PageFormat, MarginMM: cfg.Documents.MarginMM}, metricsSvc, logr)
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	exportSvc := service.NewExportService(documentSvc, issuer, documentStore, signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Documents.SignedURLTTL}, logr)
	go exportSvc.RunCleanup(ctx, cfg.Documents.CleanupInterval)

	dispatcher := service.NewNotificationDispatcher(service.NewLogNotifier(logr), jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	packingSvc := service.NewPackingService(issuer, shipmentRepo, articleRepo, qrcode.NewImageRenderer(), imageStore,
		exportSvc, auditRepo, dispatcher, cacheSvc, metricsSvc,
		service.PackingConfig{Image: imageOpts, StatsTTL: cfg.Stats.CacheTTL}, logr)
	shipmentSvc := service.NewShipmentService(txManager, shipmentRepo, articleRepo, cartonRepo, auditRepo, cacheSvc, validate, logr)

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
		"pdf_renderer": func(ctx context.Context) error {
			if state := pdfBackend.State(); state == "open" {
				return fmt.Errorf("render breaker %s", state)
			}
			return nil
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisPing(ctx, redisClient) }
	}

	r := newRouter(cfg, logr, routerDeps{
		shipments: handler.NewShipmentHandler(shipmentSvc, packingSvc),
		articles:  handler.NewArticleHandler(packingSvc, shipmentSvc),
		codes:     handler.NewCodeHandler(packingSvc),
		downloads: handler.NewDownloadHandler(exportSvc),
		metrics:   handler.NewMetricsHandler(metricsSvc, checks),
		metricSvc: metricsSvc,
		verifier:  service.NewActorVerifier(cfg.JWT.Secret),
		audit:     auditRepo,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func redisPing(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
