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

	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/service"
	"github.com/noah-isme/ci-results-api/internal/worker"
	"github.com/noah-isme/ci-results-api/pkg/cache"
	"github.com/noah-isme/ci-results-api/pkg/config"
	"github.com/noah-isme/ci-results-api/pkg/logger"
	"github.com/noah-isme/ci-results-api/pkg/taskqueue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "task-worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, "ci-results-worker")
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	stores := worker.NewMongoStores(cfg.Mongo, logr, metrics)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stores.Close(closeCtx)
	}()

	w := taskqueue.NewWorker(taskqueue.NewRedisBroker(redisClient), taskqueue.WorkerConfig{
		Queue:       cfg.Tasks.Queue,
		Concurrency: cfg.Tasks.Concurrency,
		MaxRetries:  cfg.Tasks.MaxRetries,
		RetryDelay:  cfg.Tasks.RetryDelay,
		PollTimeout: cfg.Tasks.PollTimeout,
		ResultTTL:   cfg.Tasks.ResultTTL,
		Logger:      logr,
		Metrics:     metrics,
	})
	worker.NewTasks(stores, cfg.Bisect.MaxDepth, logr).Register(w)

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Tasks.MetricsPort),
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	defer metricsSrv.Close() //nolint:errcheck

	if err := w.Run(ctx); err != nil {
		logr.Fatal("task worker failed", zap.Error(err))
	}
	logr.Info("task worker stopped")
}
