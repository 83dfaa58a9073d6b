package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/key-service-api/internal/audit"
)

const (
	TypeKeyAudit    = "key:audit"
	TypeStatsReport = "keys:stats:report"

	QueueAudit   = "audit"
	QueueDefault = "default"
)

func NewKeyAuditTask(e audit.Event, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	allOpts := append([]asynq.Option{
		asynq.Queue(QueueAudit),
		asynq.TaskID(e.ID.String()),
		asynq.MaxRetry(5),
	}, opts...)

	return asynq.NewTask(TypeKeyAudit, payload, allOpts...), nil
}

type StatsReportPayload struct{}

func NewStatsReportTask(opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(StatsReportPayload{})
	if err != nil {
		return nil, err
	}

	allOpts := append([]asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.Unique(1 * time.Minute),
	}, opts...)

	return asynq.NewTask(TypeStatsReport, payloadBytes, allOpts...), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueuePublisher defers audit writes to the worker through Redis.
type QueuePublisher struct {
	client enqueuer
}

var _ audit.Publisher = (*QueuePublisher)(nil)

func NewQueuePublisher(client *asynq.Client) *QueuePublisher {
	return &QueuePublisher{client: client}
}

func (p *QueuePublisher) Publish(ctx context.Context, e audit.Event) error {
	task, err := NewKeyAuditTask(e)
	if err != nil {
		return fmt.Errorf("failed to build audit task: %w", err)
	}
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue audit task: %w", err)
	}
	return nil
}
