package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/key-service-api/internal/audit"
	"github.com/makkenzo/key-service-api/internal/config"
	"github.com/makkenzo/key-service-api/internal/domain/key"
	"github.com/makkenzo/key-service-api/internal/storage/redis"
	"github.com/makkenzo/key-service-api/internal/tasks"
	"go.uber.org/zap"
)

func NewServeMux(sink audit.Sink, registry key.Registry, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	auditHandler := tasks.NewKeyAuditHandler(sink, logger)
	mux.HandleFunc(tasks.TypeKeyAudit, auditHandler.ProcessTask)

	statsHandler := tasks.NewStatsReportHandler(registry, logger)
	mux.HandleFunc(tasks.TypeStatsReport, statsHandler.ProcessTask)

	return mux
}

// RunWorkers starts the asynq server and scheduler and blocks until ctx is
// cancelled, then shuts both down.
func RunWorkers(ctx context.Context, cfg *config.Config, sink audit.Sink, registry key.Registry, logger *zap.Logger) error {
	redisConnOpts := redis.AsynqConnOpt(&cfg.Redis)

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				tasks.QueueAudit:   6,
				tasks.QueueDefault: 3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log := logger.Named("AsynqServerErrorHandler")
				log.Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	mux := NewServeMux(sink, registry, logger)

	logger.Info("Starting Asynq Server...")
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	schedule := cfg.Worker.StatsReportSchedule
	if schedule != "" {
		statsTask, err := tasks.NewStatsReportTask()
		if err != nil {
			srv.Shutdown()
			return fmt.Errorf("scheduler task creation error: %w", err)
		}
		entryID, err := scheduler.Register(schedule, statsTask)
		if err != nil {
			srv.Shutdown()
			return fmt.Errorf("scheduler registration error: %w", err)
		}
		logger.Info("Registered periodic stats report", zap.String("entry_id", entryID), zap.String("schedule", schedule))
	}

	logger.Info("Starting Asynq Scheduler...")
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("asynq scheduler error: %w", err)
	}

	<-ctx.Done()

	logger.Info("Shutting down Asynq Scheduler...")
	scheduler.Shutdown()
	logger.Info("Asynq Scheduler stopped.")

	logger.Info("Shutting down Asynq Server...")
	srv.Shutdown()
	logger.Info("Asynq Server stopped.")

	return nil
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

func NewAsynqLoggerAdapter(logger *zap.Logger) *asynqLoggerAdapter {
	return &asynqLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *asynqLoggerAdapter) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
