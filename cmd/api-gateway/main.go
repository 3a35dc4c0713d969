package main

import (
	"context"
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

	_ "github.com/datamart-io/marketplace-api/api/swagger"
	"github.com/datamart-io/marketplace-api/internal/handler"
	internalmiddleware "github.com/datamart-io/marketplace-api/internal/middleware"
	"github.com/datamart-io/marketplace-api/internal/models"
	"github.com/datamart-io/marketplace-api/internal/repository"
	"github.com/datamart-io/marketplace-api/internal/service"
	"github.com/datamart-io/marketplace-api/pkg/cache"
	"github.com/datamart-io/marketplace-api/pkg/config"
	"github.com/datamart-io/marketplace-api/pkg/database"
	"github.com/datamart-io/marketplace-api/pkg/export"
	"github.com/datamart-io/marketplace-api/pkg/logger"
	corsmiddleware "github.com/datamart-io/marketplace-api/pkg/middleware/cors"
	reqidmiddleware "github.com/datamart-io/marketplace-api/pkg/middleware/requestid"
	"github.com/datamart-io/marketplace-api/pkg/storage"
	"github.com/datamart-io/marketplace-api/pkg/tabular"
)

// @title Data Marketplace API
// @version 0.1.0
// @description Marketplace backend for anonymized CSV datasets
// @BasePath /api/v1
// @schemes http

const shutdownGrace = 15 * time.Second

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, marketplace cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	defer cacheRepo.Close() //nolint:errcheck

	rawStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	artifactStore, err := storage.NewLocalStorage(cfg.Anonymizer.OutputDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init artifact storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Downloads.SignedURLSecret, cfg.Downloads.SignedURLTTL)

	validate := validator.New()
	reader := tabular.NewReader()

	userRepo := repository.NewUserRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT.Secret)
	entitlementSvc := service.NewEntitlementService(userRepo, validate, logr)
	anonymizerSvc := service.NewAnonymizerService(cfg.Anonymizer, reader, artifactStore, metricsSvc, logr)

	datasetSvc := service.NewDatasetService(service.DatasetServiceParams{
		Repo:             datasetRepo,
		Entitlements:     entitlementSvc,
		RawStore:         rawStore,
		ArtifactStore:    artifactStore,
		Submitter:        anonymizerSvc,
		Tabular:          reader,
		Cache:            cacheRepo,
		Signer:           signer,
		Purchases:        purchaseRepo,
		Metrics:          metricsSvc,
		Validator:        validate,
		Logger:           logr,
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		PreviewRows:      cfg.Marketplace.PreviewRows,
		CacheTTL:         cfg.Marketplace.CacheTTL,
		DownloadBasePath: cfg.APIPrefix,
	})
	purchaseSvc := service.NewPurchaseService(purchaseRepo, datasetRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	anonymizerSvc.Start(ctx, datasetSvc.OnAnonymizationComplete)
	defer anonymizerSvc.Stop()

	datasetHandler := handler.NewDatasetHandler(datasetSvc, purchaseSvc)
	purchaseHandler := handler.NewPurchaseHandler(purchaseSvc)
	sellerHandler := handler.NewSellerHandler(purchaseSvc, cfg.Statements.Enabled)
	subscriptionHandler := handler.NewSubscriptionHandler(entitlementSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Signed token is the credential; no bearer auth on the stream itself.
	api.GET("/datasets/:id/download", datasetHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	seller := internalmiddleware.RequireRoles(models.RoleSeller)
	buyer := internalmiddleware.RequireRoles(models.RoleBuyer)
	anyRole := internalmiddleware.RequireRoles(models.RoleBuyer, models.RoleSeller)

	secured.POST("/datasets/upload", seller, datasetHandler.Upload)
	secured.GET("/datasets/mine", seller, datasetHandler.ListMine)
	secured.PATCH("/datasets/:id/listing", seller, datasetHandler.UpdateListing)
	secured.GET("/datasets/marketplace", anyRole, datasetHandler.Marketplace)
	secured.GET("/datasets/:id/preview", anyRole, datasetHandler.Preview)
	secured.GET("/datasets/:id/download-url", anyRole, datasetHandler.DownloadURL)

	secured.POST("/purchases/:datasetId", buyer, purchaseHandler.Purchase)
	secured.GET("/purchases", buyer, purchaseHandler.List)

	secured.GET("/sellers/stats", seller, sellerHandler.Stats)
	secured.GET("/sellers/statement", seller, sellerHandler.Statement)

	secured.POST("/subscriptions", seller, subscriptionHandler.Change)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
