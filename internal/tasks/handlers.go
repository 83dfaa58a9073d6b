package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/key-service-api/internal/audit"
	"github.com/makkenzo/key-service-api/internal/domain/key"
	"go.uber.org/zap"
)

type KeyAuditHandler struct {
	sink   audit.Sink
	logger *zap.Logger
}

func NewKeyAuditHandler(sink audit.Sink, logger *zap.Logger) *KeyAuditHandler {
	return &KeyAuditHandler{
		sink:   sink,
		logger: logger.Named("KeyAuditHandler"),
	}
}

func (h *KeyAuditHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeKeyAudit {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var e audit.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		h.logger.Error("Failed to unmarshal payload for key audit task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.sink.Record(ctx, e); err != nil {
		h.logger.Warn("Audit sink rejected event, will retry",
			zap.String("event_id", e.ID.String()),
			zap.String("type", string(e.Type)),
			zap.Error(err),
		)
		return err
	}

	h.logger.Debug("Audit event recorded", zap.String("event_id", e.ID.String()), zap.String("type", string(e.Type)))
	return nil
}

type statsSource interface {
	Stats() key.Stats
}

// StatsReportHandler logs a snapshot of the registry. It only reads; expiry
// is still evaluated lazily by the registry itself.
type StatsReportHandler struct {
	registry statsSource
	logger   *zap.Logger
}

func NewStatsReportHandler(registry statsSource, logger *zap.Logger) *StatsReportHandler {
	return &StatsReportHandler{
		registry: registry,
		logger:   logger.Named("StatsReportHandler"),
	}
}

func (h *StatsReportHandler) ProcessTask(_ context.Context, t *asynq.Task) error {
	if t.Type() != TypeStatsReport {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	stats := h.registry.Stats()
	h.logger.Info("Key registry stats",
		zap.Int("total_keys", stats.Total),
		zap.Int("active_keys", stats.ActiveAndUnexpired),
		zap.Int("expired_keys", stats.Expired),
	)
	return nil
}
