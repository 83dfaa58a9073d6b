package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/key-service-api/internal/audit"
	"go.uber.org/zap"
)

const createKeyEventsTable = `
	CREATE TABLE IF NOT EXISTS key_events (
		id           UUID PRIMARY KEY,
		event_type   TEXT        NOT NULL,
		token_prefix TEXT        NOT NULL,
		token_hash   TEXT        NOT NULL,
		owner        TEXT,
		outcome      TEXT,
		max_uses     INTEGER,
		expires_at   TIMESTAMPTZ,
		request_id   TEXT,
		occurred_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS key_events_token_hash_idx ON key_events (token_hash);
`

// AuditRepository stores audit events only. Key state itself is never
// written to the database.
type AuditRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAuditRepository(db *pgxpool.Pool, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger.Named("AuditRepository"),
	}
}

var _ audit.Sink = (*AuditRepository)(nil)

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createKeyEventsTable); err != nil {
		r.logger.Error("Failed to create key_events table", zap.Error(err))
		return fmt.Errorf("db error creating key_events table: %w", err)
	}
	return nil
}

func (r *AuditRepository) Record(ctx context.Context, e audit.Event) error {
	query := `
		INSERT INTO key_events (
			id, event_type, token_prefix, token_hash, owner,
			outcome, max_uses, expires_at, request_id, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		e.ID,
		string(e.Type),
		e.TokenPrefix,
		e.TokenHash,
		nullIfEmpty(e.Owner),
		nullIfEmpty(string(e.Outcome)),
		nullIfZero(e.MaxUses),
		e.ExpiresAt,
		nullIfEmpty(e.RequestID),
		e.OccurredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Redelivered task; the event is already stored.
			r.logger.Debug("Audit event already recorded", zap.String("id", e.ID.String()))
			return nil
		}
		r.logger.Error("Failed to insert audit event", zap.String("id", e.ID.String()), zap.Error(err))
		return fmt.Errorf("db error recording audit event: %w", err)
	}
	return nil
}

func (r *AuditRepository) Close() error {
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
