// Package main runs the DocuFlow HTTP API with WebSocket notifications and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docuflow/backend/config"
	"github.com/docuflow/backend/internal/activity"
	"github.com/docuflow/backend/internal/ai"
	"github.com/docuflow/backend/internal/apikeys"
	"github.com/docuflow/backend/internal/auth"
	"github.com/docuflow/backend/internal/billing"
	"github.com/docuflow/backend/internal/documents"
	"github.com/docuflow/backend/internal/middleware"
	"github.com/docuflow/backend/internal/notifications"
	"github.com/docuflow/backend/internal/organizations"
	"github.com/docuflow/backend/internal/profiles"
	"github.com/docuflow/backend/internal/realtime"
	"github.com/docuflow/backend/internal/validation"
	"github.com/docuflow/backend/internal/worker"
	"github.com/docuflow/backend/pkg/database"
	"github.com/docuflow/backend/pkg/metrics"
	"github.com/docuflow/backend/pkg/queue"
	"github.com/docuflow/backend/pkg/ratelimit"
	"github.com/docuflow/backend/pkg/redis"
	"github.com/docuflow/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.Register(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			Release:          cfg.Sentry.Release,
			EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		})
		if err != nil {
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

	if applied, err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	} else if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("files", applied))
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	} else {
		logger.Warn("redis not configured: document processing and cross-instance notifications disabled")
	}

	// Realtime
	var (
		pub realtime.RedisPublisher
		sub realtime.RedisSubscriber
	)
	if rdb != nil {
		ps := realtime.NewRedisPubSub(rdb.Client, logger)
		pub, sub = ps, ps
	}
	hub := realtime.NewHub(logger, pub, sub, m)

	// Repositories
	profileRepo := profiles.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	docRepo := documents.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	activityRepo := activity.NewRepository(pool)
	apiKeyRepo := apikeys.NewRepository(pool)
	billingRepo := billing.NewRepository(pool)

	notifier := notifications.NewService(notificationRepo, profileRepo, hub, logger)
	billingSvc := billing.NewService(billingRepo, billing.Prices{Pro: cfg.Stripe.PriceIDPro, Team: cfg.Stripe.PriceIDTeam}, activityRepo, m, logger)

	// Optional integrations
	docDeps := documents.Deps{
		Store:    docRepo,
		Roles:    orgRepo,
		Quota:    billingSvc,
		Activity: activityRepo,
		Metrics:  m,
		Logger:   logger,
	}
	var jobQueue *queue.Queue
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
		docDeps.Queue = jobQueue
	}
	if cfg.Storage.Endpoint != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Endpoint:             cfg.Storage.Endpoint,
			Region:               cfg.Storage.Region,
			AccessKeyID:          cfg.Storage.AccessKeyID,
			SecretAccessKey:      cfg.Storage.SecretAccessKey,
			Bucket:               cfg.Storage.Bucket,
			PresignExpireMinutes: cfg.Storage.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("storage disabled", zap.Error(err))
		} else {
			docDeps.Files = s3Client
		}
	}
	aiClient, err := ai.New(ai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		ChatModel:      cfg.OpenAI.ChatModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		MaxChars:       cfg.OpenAI.MaxContentChars,
	}, m, logger)
	if err != nil {
		logger.Warn("openai disabled", zap.Error(err))
	} else {
		docDeps.Embedder = aiClient
	}
	var gateway billing.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		logger.Warn("stripe not configured: billing endpoints disabled")
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	if cfg.RateLimit.Backend == "redis" {
		if rdb == nil {
			logger.Fatal("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
		}
		limiter = ratelimit.NewRedis(rdb.Client, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	resolver := auth.NewResolver(auth.NewVerifier(cfg.Supabase.JWTSecret), apiKeyRepo, cfg.Supabase.SessionCookieName, logger)

	h := handlers{
		profiles:      profiles.NewHandler(profileRepo, logger),
		organizations: organizations.NewHandler(orgRepo, profileRepo, notifier, activityRepo, logger),
		documents: documents.NewHandler(docDeps, documents.Options{
			MaxUploadBytes: cfg.Upload.MaxBytes,
			MatchThreshold: cfg.OpenAI.MatchThreshold,
			PublicBaseURL:  cfg.Server.PublicBaseURL,
		}),
		notifications: notifications.NewHandler(notificationRepo, profileRepo, logger),
		activity:      activity.NewHandler(activityRepo, orgRepo, profileRepo, logger),
		billing:       billing.NewHandler(billingSvc, gateway, profileRepo, orgRepo, cfg.Server.PublicBaseURL, logger),
		apiKeys:       apikeys.NewHandler(apiKeyRepo, activityRepo, logger),
		ws:            realtime.ServeWs(hub, realtime.NewUpgrader(config.SplitTrim(cfg.Server.CORSAllowedOrigins, ",")), logger),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.Authenticate(resolver))
	router.Use(middleware.EnsureProfile(profileRepo, logger))
	registerRoutes(router, h, orgRepo, middleware.RateLimit(limiter, m, logger), m, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (document summaries and embeddings)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Worker.InProcess && jobQueue != nil && aiClient != nil {
		processor := worker.NewDocumentProcessor(docRepo, aiClient, jobQueue, notifier, activityRepo, m, logger)
		go func() {
			processor.Run(workerCtx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// the worker requeues its in-flight job before Redis is closed
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop in time")
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
