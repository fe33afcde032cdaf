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

	_ "github.com/institutoberea/enrollment-api/api/swagger"
	"github.com/institutoberea/enrollment-api/internal/handler"
	"github.com/institutoberea/enrollment-api/internal/middleware"
	"github.com/institutoberea/enrollment-api/internal/repository"
	"github.com/institutoberea/enrollment-api/internal/service"
	"github.com/institutoberea/enrollment-api/pkg/cache"
	"github.com/institutoberea/enrollment-api/pkg/config"
	"github.com/institutoberea/enrollment-api/pkg/database"
	"github.com/institutoberea/enrollment-api/pkg/export"
	"github.com/institutoberea/enrollment-api/pkg/jobs"
	"github.com/institutoberea/enrollment-api/pkg/logger"
	corsmiddleware "github.com/institutoberea/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/institutoberea/enrollment-api/pkg/middleware/requestid"
	"github.com/institutoberea/enrollment-api/pkg/storage"
)

// @title Instituto Berea Enrollment API
// @version 0.1.0
// @description Enrollment catalog and request approval workflow
// @BasePath /
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheSvc *service.CacheService
	metrics := service.NewMetricsService()
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metrics, cfg.Catalog.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	}

	courseRepo := repository.NewCourseRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	cycleRepo := repository.NewCycleRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	requestRepo := repository.NewRequestRepository(db)

	catalogSvc := service.NewCatalogService(courseRepo, levelRepo, cycleRepo, sectionRepo, rosterRepo, requestRepo, cacheSvc, metrics, cfg.Catalog.CacheTTL, logr)

	warmQueue := jobs.NewQueue("catalog-warm", func(ctx context.Context, job jobs.Job) error {
		learnerID, _ := job.Payload.(string)
		_, _, err := catalogSvc.BuildCatalog(ctx, learnerID)
		return err
	}, jobs.QueueConfig{Workers: 1, Logger: logr})
	warmQueue.Start(ctx)
	defer warmQueue.Stop()

	validate := validator.New()
	var enrollSvc *service.EnrollmentRequestService
	if cfg.Catalog.WarmOnChange {
		enrollSvc = service.NewEnrollmentRequestService(requestRepo, rosterRepo, sectionRepo, catalogSvc, warmQueue, validate, metrics, logr)
	} else {
		enrollSvc = service.NewEnrollmentRequestService(requestRepo, rosterRepo, sectionRepo, catalogSvc, nil, validate, metrics, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	api.GET("/catalog", catalogHandler.Get)

	enrollHandler := handler.NewEnrollmentRequestHandler(enrollSvc)
	api.GET("/enrollment-requests", enrollHandler.List)
	api.POST("/enrollment-requests", enrollHandler.Create)
	api.POST("/enrollment-requests/:id/approve", enrollHandler.Approve)
	api.POST("/enrollment-requests/:id/reject", enrollHandler.Reject)

	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(rosterRepo, sectionRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		exportQueue := jobs.NewQueue("roster-export", exportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportSvc.Cleanup()
				}
			}
		}()

		exportHandler := handler.NewExportHandler(exportSvc, exportQueue)
		api.POST("/sections/:id/roster-exports", exportHandler.Create)
		api.GET("/roster-exports/:id", exportHandler.Status)
		api.GET("/roster-exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
