// Package main runs the background document worker (summaries, tags and embeddings).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docuflow/backend/config"
	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/ai"
	"github.com/docuflow/backend/internal/documents"
	"github.com/docuflow/backend/internal/notifications"
	"github.com/docuflow/backend/internal/profiles"
	"github.com/docuflow/backend/internal/realtime"
	"github.com/docuflow/backend/internal/worker"
	"github.com/docuflow/backend/pkg/database"
	"github.com/docuflow/backend/pkg/metrics"
	"github.com/docuflow/backend/pkg/queue"
	"github.com/docuflow/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is required for the worker")
	}
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment, Release: cfg.Sentry.Release}); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	m, err := metrics.New()
	if err != nil {
		logger.Fatal("metrics", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	aiClient, err := ai.New(ai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		ChatModel:      cfg.OpenAI.ChatModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		MaxChars:       cfg.OpenAI.MaxContentChars,
	}, m, logger)
	if err != nil {
		logger.Fatal("openai", zap.Error(err))
	}

	// Notifications reach API instances through Redis pub/sub; this process holds no sockets.
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub, m)
	profileRepo := profiles.NewRepository(pool)
	notifier := notifications.NewService(notifications.NewRepository(pool), profileRepo, hub, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewDocumentProcessor(documents.NewRepository(pool), aiClient, jobQueue, notifier,
		activity.NewRepository(pool), m, logger)

	metricsSrv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: m.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
