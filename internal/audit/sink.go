package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/makkenzo/key-service-api/pkg/logger"
)

type NopSink struct{}

func (NopSink) Record(context.Context, Event) error { return nil }
func (NopSink) Close() error                        { return nil }

// FileSink appends events as JSON lines, the structured successor of the
// plain-text generated keys file.
type FileSink struct {
	out *zap.Logger
}

func NewFileSink(path string) (*FileSink, error) {
	out, err := logger.NewJSONFileLogger(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file %s: %w", path, err)
	}
	return &FileSink{out: out}, nil
}

func (s *FileSink) Record(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("id", e.ID.String()),
		zap.String("token_prefix", e.TokenPrefix),
		zap.String("token_hash", e.TokenHash),
		zap.Time("occurred_at", e.OccurredAt),
	}
	if e.Owner != "" {
		fields = append(fields, zap.String("owner", e.Owner))
	}
	if e.Outcome != "" {
		fields = append(fields, zap.String("outcome", string(e.Outcome)))
	}
	if e.MaxUses > 0 {
		fields = append(fields, zap.Int("max_uses", e.MaxUses))
	}
	if e.ExpiresAt != nil {
		fields = append(fields, zap.Time("expires_at", *e.ExpiresAt))
	}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}

	s.out.Info(string(e.Type), fields...)
	return nil
}

func (s *FileSink) Close() error {
	return s.out.Sync()
}

// DirectPublisher hands events straight to a sink on the caller's goroutine.
// Used when no task queue is configured.
type DirectPublisher struct {
	sink Sink
}

func NewDirectPublisher(sink Sink) *DirectPublisher {
	return &DirectPublisher{sink: sink}
}

func (p *DirectPublisher) Publish(ctx context.Context, e Event) error {
	return p.sink.Record(ctx, e)
}
