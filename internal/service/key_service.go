package service

import (
	"context"
	"fmt"
	"time"

	"github.com/makkenzo/key-service-api/internal/audit"
	"github.com/makkenzo/key-service-api/internal/config"
	"github.com/makkenzo/key-service-api/internal/domain/key"
	"github.com/makkenzo/key-service-api/internal/handler/dto"
	"github.com/makkenzo/key-service-api/internal/ierr"
	"github.com/makkenzo/key-service-api/internal/metrics"
	"go.uber.org/zap"
)

type KeyService struct {
	registry  key.Registry
	publisher audit.Publisher
	metrics   *metrics.Recorder
	defaults  config.KeysConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewKeyService(
	registry key.Registry,
	publisher audit.Publisher,
	recorder *metrics.Recorder,
	defaults config.KeysConfig,
	logger *zap.Logger,
) *KeyService {
	if defaults.DefaultDurationHours <= 0 {
		defaults.DefaultDurationHours = int(key.DefaultDuration / time.Hour)
	}
	if defaults.DefaultMaxUses <= 0 {
		defaults.DefaultMaxUses = key.DefaultMaxUses
	}
	if publisher == nil {
		publisher = audit.NewDirectPublisher(audit.NopSink{})
	}
	if recorder == nil {
		recorder = metrics.NewRecorder(nil)
	}

	return &KeyService{
		registry:  registry,
		publisher: publisher,
		metrics:   recorder,
		defaults:  defaults,
		logger:    logger.Named("KeyService"),
		now:       time.Now,
	}
}

func (s *KeyService) CreateKey(ctx context.Context, req *dto.CreateKeyRequest) (*key.Key, error) {
	durationHours := s.defaults.DefaultDurationHours
	if req.DurationHours != nil {
		durationHours = *req.DurationHours
	}
	maxUses := s.defaults.DefaultMaxUses
	if req.MaxUses != nil {
		maxUses = *req.MaxUses
	}
	owner := req.OwnerID()

	s.logger.Info("Generating new key",
		zap.String("owner", owner),
		zap.Int("duration_hours", durationHours),
		zap.Int("max_uses", maxUses),
	)

	if int64(durationHours) > key.MaxDurationHours {
		s.metrics.GenerateErrors.Inc()
		s.logger.Warn("Rejected key creation request", zap.String("owner", owner), zap.Int("duration_hours", durationHours))
		return nil, fmt.Errorf("%w: duration_hours must be at most %d, got %d",
			ierr.ErrInvalidParameter, key.MaxDurationHours, durationHours)
	}

	k, err := s.registry.Generate(owner, time.Duration(durationHours)*time.Hour, maxUses)
	if err != nil {
		s.metrics.GenerateErrors.Inc()
		if ierr.IsValidation(err) {
			s.logger.Warn("Rejected key creation request", zap.String("owner", owner), zap.Error(err))
			return nil, err
		}
		s.logger.Error("Failed to generate key", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("registry error generating key: %w", err)
	}

	s.metrics.KeysGenerated.Inc()
	s.publish(ctx, audit.IssuedEvent(k))

	s.logger.Info("Key generated successfully",
		zap.String("key", key.MaskToken(k.Token)),
		zap.String("owner", k.Owner),
		zap.Time("expires_at", k.ExpiresAt),
	)
	return k, nil
}

// ValidateKey consumes one use on success. Every non-success outcome is a
// value, never an error.
func (s *KeyService) ValidateKey(ctx context.Context, token string) key.Outcome {
	outcome := s.registry.Validate(token)
	s.metrics.ObserveValidation(outcome.Status)
	s.publish(ctx, audit.ValidatedEvent(token, outcome, s.now()))

	if outcome.Valid() {
		s.logger.Info("Key validated",
			zap.String("key", key.MaskToken(token)),
			zap.String("owner", outcome.Owner),
			zap.Int("remaining_uses", outcome.RemainingUses),
		)
	} else {
		s.logger.Info("Key validation rejected",
			zap.String("key", key.MaskToken(token)),
			zap.String("status", string(outcome.Status)),
		)
	}
	return outcome
}

func (s *KeyService) GetKey(ctx context.Context, token string) (*dto.KeyResponse, error) {
	k, err := s.registry.Info(token)
	if err != nil {
		s.logger.Debug("Key lookup failed", zap.String("key", key.MaskToken(token)), zap.Error(err))
		return nil, err
	}
	return dto.NewKeyResponse(k, s.now()), nil
}

func (s *KeyService) RevokeKey(ctx context.Context, token string) error {
	s.logger.Info("Attempting to revoke key", zap.String("key", key.MaskToken(token)))

	if err := s.registry.Revoke(token); err != nil {
		s.logger.Warn("Failed to revoke key", zap.String("key", key.MaskToken(token)), zap.Error(err))
		return err
	}

	s.metrics.KeysRevoked.Inc()
	s.publish(ctx, audit.RevokedEvent(token, s.now()))

	s.logger.Info("Key revoked successfully", zap.String("key", key.MaskToken(token)))
	return nil
}

func (s *KeyService) ListKeys(ctx context.Context) []*dto.KeyResponse {
	keys := s.registry.List()
	now := s.now()

	responses := make([]*dto.KeyResponse, len(keys))
	for i, k := range keys {
		responses[i] = dto.NewKeyResponse(k, now)
	}
	s.logger.Debug("Keys listed", zap.Int("count", len(responses)))
	return responses
}

func (s *KeyService) GetStats(ctx context.Context) *dto.StatsResponse {
	stats := s.registry.Stats()
	return &dto.StatsResponse{
		TotalKeys:   stats.Total,
		ActiveKeys:  stats.ActiveAndUnexpired,
		ExpiredKeys: stats.Expired,
		Timestamp:   s.now().UTC(),
	}
}

// publish never fails the caller; the registry outcome stands regardless.
func (s *KeyService) publish(ctx context.Context, e audit.Event) {
	e.RequestID = audit.RequestIDFrom(ctx)
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.metrics.AuditFailures.Inc()
		s.logger.Warn("Failed to publish audit event",
			zap.String("type", string(e.Type)),
			zap.String("key", e.TokenPrefix),
			zap.Error(err),
		)
	}
}
