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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/MAZGOURA/attestation-api/api/swagger"
	"github.com/MAZGOURA/attestation-api/internal/handler"
	"github.com/MAZGOURA/attestation-api/internal/middleware"
	"github.com/MAZGOURA/attestation-api/internal/notifier"
	"github.com/MAZGOURA/attestation-api/internal/repository"
	"github.com/MAZGOURA/attestation-api/internal/roster"
	"github.com/MAZGOURA/attestation-api/internal/service"
	"github.com/MAZGOURA/attestation-api/pkg/cache"
	"github.com/MAZGOURA/attestation-api/pkg/config"
	"github.com/MAZGOURA/attestation-api/pkg/database"
	"github.com/MAZGOURA/attestation-api/pkg/logger"
	corsmiddleware "github.com/MAZGOURA/attestation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/MAZGOURA/attestation-api/pkg/middleware/requestid"
)

// @title Attestation API
// @version 1.0.0
// @description Proof-of-enrollment attestation request service
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// The suggestion cache is optional: without redis the service
	// validates against the in-memory index on every call.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, identity checks run uncached", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	attestations := repository.NewAttestationRepository(db)
	counters := repository.NewCounterRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	audits := repository.NewAuditRepository(db)

	if err := counters.Bootstrap(ctx); err != nil {
		logr.Fatal("failed to bootstrap document counter", zap.Error(err))
	}

	entries, err := rosterRepo.LoadAll(ctx)
	if err != nil {
		logr.Fatal("failed to load enrollment roster", zap.Error(err))
	}
	index := roster.NewIndex(entries)
	matcher := roster.NewMatcher(index, cfg.Attestation.SuggestMaxDistance)
	logr.Info("enrollment roster loaded",
		zap.Int("entries", index.Size()),
		zap.Int("groups", len(index.Groups())),
	)

	metrics := service.NewMetricsService()

	var notify notifier.Notifier = notifier.Noop{}
	var queued *notifier.Queued
	if cfg.Notifier.Enabled && cfg.Notifier.WebhookURL != "" {
		webhook := notifier.NewWebhook(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout)
		queued = notifier.NewQueued(webhook, notifier.QueuedConfig{
			Workers:    cfg.Notifier.Workers,
			MaxRetries: cfg.Notifier.MaxRetries,
			Logger:     logr,
			OnDrop: func(event notifier.Event, err error) {
				metrics.RecordNotificationFailure()
				logr.Warn("notification dropped after retries",
					zap.String("request_id", event.RequestID),
					zap.Error(err),
				)
			},
		})
		queued.Start(ctx)
		defer queued.Stop()
		notify = queued
	}

	quota := service.NewQuotaTracker(attestations, cfg.Attestation.QuotaPerYear)
	submissions := service.NewSubmissionService(attestations, matcher, quota, metrics, nil, logr)
	allocator := service.NewReferenceAllocator(counters, audits, metrics, logr, cfg.Counter.MaxRetries, cfg.Counter.RetryDelay)
	decisions := service.NewDecisionService(attestations, allocator, notify, audits, index, metrics, logr)
	rosterSvc := service.NewRosterService(index, matcher, cacheRepo, cfg.Attestation.SuggestCacheTTL, metrics, logr)

	attestationHandler := handler.NewAttestationHandler(submissions, decisions)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	counterHandler := handler.NewCounterHandler(allocator)
	metricsHandler := handler.NewMetricsHandler(metrics)

	verifier := middleware.NewTokenVerifier(cfg.Auth.TokenSecret, cfg.Auth.Issuer)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/identity/check", rosterHandler.CheckIdentity)
		api.GET("/roster/groups", rosterHandler.Groups)
		api.GET("/roster/groups/:group", rosterHandler.GroupEntries)

		api.POST("/attestations", attestationHandler.Submit)
		api.POST("/attestations/verified", middleware.JWT(verifier), attestationHandler.SubmitVerified)

		admin := api.Group("", middleware.JWT(verifier), middleware.RequireAdmin())
		{
			admin.GET("/attestations", attestationHandler.List)
			admin.GET("/attestations/:id", attestationHandler.Get)
			admin.POST("/attestations/:id/approve", attestationHandler.Approve)
			admin.POST("/attestations/:id/reject", attestationHandler.Reject)
			admin.POST("/attestations/:id/print", attestationHandler.Print)
			admin.DELETE("/attestations/:id", attestationHandler.Delete)

			admin.GET("/counter", counterHandler.Current)
			admin.POST("/counter/reset", counterHandler.Reset)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown incomplete", zap.Error(err))
	}
}
