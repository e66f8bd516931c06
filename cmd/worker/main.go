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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/hris-discipline-api/internal/handler"
	"github.com/noah-isme/hris-discipline-api/internal/messaging"
	"github.com/noah-isme/hris-discipline-api/internal/repository"
	"github.com/noah-isme/hris-discipline-api/internal/service"
	"github.com/noah-isme/hris-discipline-api/pkg/config"
	"github.com/noah-isme/hris-discipline-api/pkg/database"
	"github.com/noah-isme/hris-discipline-api/pkg/jobs"
	"github.com/noah-isme/hris-discipline-api/pkg/logger"
)

// The worker drains the notification outbox: rows the API could not hand off
// after commit, and rows whose delivery failed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	logr = logr.Named("worker")

	if err := run(cfg, logr); err != nil {
		logr.Error("worker stopped with error", zap.Error(err))
		_ = logr.Sync()
		os.Exit(1)
	}
	logr.Info("worker stopped")
	_ = logr.Sync()
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	outbox := repository.NewNotificationRepository(db, cfg.Notifications.MaxDeliveryAttempts)
	sink := messaging.NewSink(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic, logr)
	defer sink.Close() //nolint:errcheck

	dispatcher := service.NewNotificationDispatcher(sink, outbox, metrics, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	relay := service.NewNotificationRelay(outbox, dispatcher, cfg.Notifications.RelayInterval, cfg.Notifications.RelayBatch, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	ops := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)})
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Notifications.WorkerPort), Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	dispatcher.Start(gctx)

	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logr.Info("metrics server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dispatcher.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
