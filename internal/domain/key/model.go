package key

import (
	"math"
	"time"
)

const (
	TokenLength     = 32
	TokenAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	MaskedPrefixLen = 8

	DefaultDuration = 24 * time.Hour
	DefaultMaxUses  = 1

	// MaxDurationHours is the longest lifetime, in hours, a time.Duration can hold.
	MaxDurationHours = math.MaxInt64 / int64(time.Hour)
)

// Key is a single issued access key. Records are never removed from the
// registry; revoked, expired and exhausted keys stay queryable.
type Key struct {
	Token       string    `json:"key"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	MaxUses     int       `json:"max_uses"`
	CurrentUses int       `json:"current_uses"`
	Active      bool      `json:"is_active"`
}

// IsExpired is evaluated on every read; it is never stored.
func (k *Key) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

func (k *Key) RemainingUses() int {
	if k.CurrentUses >= k.MaxUses {
		return 0
	}
	return k.MaxUses - k.CurrentUses
}

// MaskToken shortens a token for logs and audit records.
func MaskToken(token string) string {
	if len(token) <= MaskedPrefixLen {
		return token
	}
	return token[:MaskedPrefixLen] + "..."
}

type Stats struct {
	Total              int `json:"total_keys"`
	ActiveAndUnexpired int `json:"active_keys"`
	Expired            int `json:"expired_keys"`
}
