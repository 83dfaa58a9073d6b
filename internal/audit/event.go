package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/makkenzo/key-service-api/internal/domain/key"
	"github.com/makkenzo/key-service-api/internal/util"
)

type EventType string

const (
	EventKeyIssued    EventType = "key.issued"
	EventKeyValidated EventType = "key.validated"
	EventKeyRevoked   EventType = "key.revoked"
)

// Event is an append-only record of something that happened to a key. The
// raw token is never stored, only its masked prefix and SHA-256 hash.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	Type        EventType  `json:"type"`
	TokenPrefix string     `json:"token_prefix"`
	TokenHash   string     `json:"token_hash"`
	Owner       string     `json:"owner,omitempty"`
	Outcome     key.Status `json:"outcome,omitempty"`
	MaxUses     int        `json:"max_uses,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RequestID   string     `json:"request_id,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

func NewEvent(eventType EventType, token string, at time.Time) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		TokenPrefix: key.MaskToken(token),
		TokenHash:   util.HashToken(token),
		OccurredAt:  at.UTC(),
	}
}

func IssuedEvent(k *key.Key) Event {
	e := NewEvent(EventKeyIssued, k.Token, k.CreatedAt)
	e.Owner = k.Owner
	e.MaxUses = k.MaxUses
	expiresAt := k.ExpiresAt.UTC()
	e.ExpiresAt = &expiresAt
	return e
}

func ValidatedEvent(token string, outcome key.Outcome, at time.Time) Event {
	e := NewEvent(EventKeyValidated, token, at)
	e.Outcome = outcome.Status
	e.Owner = outcome.Owner
	return e
}

func RevokedEvent(token string, at time.Time) Event {
	return NewEvent(EventKeyRevoked, token, at)
}

type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
