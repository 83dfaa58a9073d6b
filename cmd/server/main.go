package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/makkenzo/key-service-api/internal/audit"
	"github.com/makkenzo/key-service-api/internal/config"
	"github.com/makkenzo/key-service-api/internal/handler"
	"github.com/makkenzo/key-service-api/internal/metrics"
	"github.com/makkenzo/key-service-api/internal/service"
	"github.com/makkenzo/key-service-api/internal/storage/memstorage"
	"github.com/makkenzo/key-service-api/internal/storage/postgres"
	"github.com/makkenzo/key-service-api/internal/storage/redis"
	"github.com/makkenzo/key-service-api/internal/tasks"
	"github.com/makkenzo/key-service-api/internal/worker"
	"github.com/makkenzo/key-service-api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()

	sugarLogger.Info("Starting application...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dbPool *pgxpool.Pool
	if cfg.Audit.Sink == config.AuditSinkPostgres {
		dbPool, err = postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbPool.Close()
	}

	sink, err := newAuditSink(appCtx, cfg, dbPool, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to initialize audit sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			sugarLogger.Errorf("Failed to close audit sink: %v", err)
		}
	}()

	var (
		redisClient *goredis.Client
		publisher   audit.Publisher = audit.NewDirectPublisher(sink)
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()

		asynqClient := asynq.NewClient(redis.AsynqConnOpt(&cfg.Redis))
		defer asynqClient.Close()
		publisher = tasks.NewQueuePublisher(asynqClient)
		sugarLogger.Info("Audit events will be delivered through the task queue")
	} else {
		sugarLogger.Info("Redis not configured; audit events are written synchronously and the stats report is disabled")
	}

	registry := memstorage.NewKeyRegistry()

	adminTokens, err := memstorage.NewAdminTokenStore(cfg.Auth.AdminTokens, bcrypt.DefaultCost)
	if err != nil {
		sugarLogger.Fatalf("Failed to load admin tokens: %v", err)
	}
	if adminTokens.Len() == 0 {
		sugarLogger.Warn("No admin tokens configured; admin endpoints will reject every request")
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	prometheus.MustRegister(metrics.NewRegistryCollector(registry))

	keyService := service.NewKeyService(registry, publisher, recorder, cfg.Keys, appLogger)
	authService := service.NewAuthService(adminTokens, &cfg.Auth, appLogger)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterDeps{
		KeyService:     keyService,
		AuthService:    authService,
		Health:         handler.NewHealthHandler(dbPool, redisClient, appLogger),
		MetricsHandler: promhttp.Handler(),
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         appLogger,
	})

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	if cfg.Redis.Enabled() {
		g.Go(func() error {
			if err := worker.RunWorkers(groupCtx, cfg, sink, registry, appLogger); err != nil {
				sugarLogger.Error("Asynq worker failed", zap.Error(err))
				return fmt.Errorf("asynq worker error: %w", err)
			}
			sugarLogger.Info("Asynq workers finished gracefully.")
			return nil
		})
	}

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", err)
	} else {
		sugarLogger.Info("Application shutdown successfully.")
	}
}

func newAuditSink(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, logger *zap.Logger) (audit.Sink, error) {
	switch cfg.Audit.Sink {
	case config.AuditSinkNone, "":
		logger.Info("Audit trail disabled")
		return audit.NopSink{}, nil
	case config.AuditSinkFile:
		logger.Info("Audit events go to file", zap.String("path", cfg.Audit.FilePath))
		return audit.NewFileSink(cfg.Audit.FilePath)
	case config.AuditSinkPostgres:
		repo := postgres.NewAuditRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info("Audit events go to PostgreSQL")
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}
