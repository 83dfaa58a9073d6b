package dto

import (
	"time"

	"github.com/makkenzo/key-service-api/internal/domain/key"
)

// CreateKeyRequest accepts "user_id" as an alias of "owner" for older clients.
type CreateKeyRequest struct {
	Owner         string `json:"owner" binding:"required_without=UserID"`
	UserID        string `json:"user_id" binding:"required_without=Owner"`
	DurationHours *int   `json:"duration_hours" binding:"omitempty,gte=1,lte=2562047"`
	MaxUses       *int   `json:"max_uses" binding:"omitempty,gte=1"`
}

func (r *CreateKeyRequest) OwnerID() string {
	if r.Owner != "" {
		return r.Owner
	}
	return r.UserID
}

type CreateKeyResponse struct {
	Key       string    `json:"key"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   int       `json:"max_uses"`
}

func NewCreateKeyResponse(k *key.Key) *CreateKeyResponse {
	return &CreateKeyResponse{
		Key:       k.Token,
		Owner:     k.Owner,
		CreatedAt: k.CreatedAt,
		ExpiresAt: k.ExpiresAt,
		MaxUses:   k.MaxUses,
	}
}

type ValidateKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

type ValidateKeyResponse struct {
	IsValid       bool       `json:"is_valid"`
	Status        key.Status `json:"status"`
	Reason        string     `json:"reason"`
	Owner         string     `json:"owner,omitempty"`
	RemainingUses *int       `json:"remaining_uses,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func NewValidateKeyResponse(o key.Outcome) *ValidateKeyResponse {
	resp := &ValidateKeyResponse{
		IsValid: o.Valid(),
		Status:  o.Status,
		Reason:  o.Status.Reason(),
	}
	if o.Valid() {
		remaining := o.RemainingUses
		expiresAt := o.ExpiresAt
		resp.Owner = o.Owner
		resp.RemainingUses = &remaining
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

type KeyResponse struct {
	Key           string    `json:"key"`
	Owner         string    `json:"owner"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	MaxUses       int       `json:"max_uses"`
	CurrentUses   int       `json:"current_uses"`
	RemainingUses int       `json:"remaining_uses"`
	IsActive      bool      `json:"is_active"`
	IsExpired     bool      `json:"is_expired"`
}

// NewKeyResponse derives is_expired from now; it is never read from the record.
func NewKeyResponse(k *key.Key, now time.Time) *KeyResponse {
	return &KeyResponse{
		Key:           k.Token,
		Owner:         k.Owner,
		CreatedAt:     k.CreatedAt,
		ExpiresAt:     k.ExpiresAt,
		MaxUses:       k.MaxUses,
		CurrentUses:   k.CurrentUses,
		RemainingUses: k.RemainingUses(),
		IsActive:      k.Active,
		IsExpired:     k.IsExpired(now),
	}
}

type RevokeKeyResponse struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

type StatsResponse struct {
	TotalKeys   int       `json:"total_keys"`
	ActiveKeys  int       `json:"active_keys"`
	ExpiredKeys int       `json:"expired_keys"`
	Timestamp   time.Time `json:"timestamp"`
}
