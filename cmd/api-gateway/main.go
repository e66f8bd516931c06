package main

import (
	"context"
	"errors"
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
	"go.uber.org/zap"

	_ "github.com/noah-isme/hris-discipline-api/api/swagger"
	"github.com/noah-isme/hris-discipline-api/internal/handler"
	"github.com/noah-isme/hris-discipline-api/internal/messaging"
	"github.com/noah-isme/hris-discipline-api/internal/middleware"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/repository"
	"github.com/noah-isme/hris-discipline-api/internal/service"
	"github.com/noah-isme/hris-discipline-api/pkg/cache"
	"github.com/noah-isme/hris-discipline-api/pkg/config"
	"github.com/noah-isme/hris-discipline-api/pkg/database"
	"github.com/noah-isme/hris-discipline-api/pkg/jobs"
	"github.com/noah-isme/hris-discipline-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hris-discipline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hris-discipline-api/pkg/middleware/requestid"
)

// @title HRIS Discipline API
// @version 1.0
// @description Disciplinary reports, actions and case files.
// @BasePath /
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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient := cache.NewOptional(ctx, cfg.Discipline.CacheEnabled, cfg.Redis, logr)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.ServiceName, logr)
	defer cacheRepo.Close() //nolint:errcheck

	users := repository.NewDirectoryRepository(db)
	reportRepo := repository.NewReportRepository(db)
	actionRepo := repository.NewActionRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	outbox := repository.NewNotificationRepository(db, cfg.Notifications.MaxDeliveryAttempts)

	metrics := service.NewMetricsService()
	validate := validator.New()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Discipline.CategoryCacheTTL, logr, redisClient != nil)
	categories := service.NewCategoryService(categoryRepo, cacheSvc, cfg.Discipline.CategoryCacheTTL, logr)
	violations := service.NewViolationHistoryService(reportRepo, categories, cfg.Discipline.PriorViolationLimit, logr)
	reports := service.NewReportService(reportRepo, categories, violations, users, users, validate, logr,
		service.WithReportMetrics(metrics))

	var notifier service.EventNotifier
	if cfg.Notifications.Enabled {
		sink := messaging.NewSink(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic, logr)
		defer sink.Close() //nolint:errcheck
		dispatcher := service.NewNotificationDispatcher(sink, outbox, metrics, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		}, logr)
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		notifier = dispatcher
	}

	policy := service.WorkflowPolicy{
		RequireExplanationBeforeVerdict: cfg.Discipline.RequireExplanationBeforeVerdict,
		VerdictRoles:                    service.NewRoleSet(models.ParseRoles(cfg.Discipline.VerdictRoles)...),
	}
	actions := service.NewActionService(actionRepo, reportRepo, users, notifier, users, policy, validate, logr,
		service.WithActionMetrics(metrics))
	cases := service.NewCaseService(reportRepo, actionRepo, categories, violations, historyRepo, logr)

	reportHandler := handler.NewReportHandler(reports, cases, nil)
	if cfg.Exports.Enabled {
		exports := service.NewCaseExportService(cases, reports, users, cfg.Exports.MaxReports, logr)
		reportHandler = handler.NewReportHandler(reports, cases, exports)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Reports:    reportHandler,
		Actions:    handler.NewActionHandler(actions),
		Categories: handler.NewCategoryHandler(categories),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	}, handler.RouteDeps{
		Tokens: service.NewTokenService(cfg.JWT),
		Audit:  users,
		Logger: logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

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
