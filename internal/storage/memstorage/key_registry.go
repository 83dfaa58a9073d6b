package memstorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/makkenzo/key-service-api/internal/domain/key"
	"github.com/makkenzo/key-service-api/internal/ierr"
	"github.com/makkenzo/key-service-api/internal/util"
)

const maxGenerateAttempts = 3

type Option func(*KeyRegistry)

func WithClock(now func() time.Time) Option {
	return func(r *KeyRegistry) {
		r.now = now
	}
}

func WithTokenGenerator(gen func() (string, error)) Option {
	return func(r *KeyRegistry) {
		r.newToken = gen
	}
}

// KeyRegistry keeps every issued key in memory for the life of the process.
// There is no eviction: the map only grows.
type KeyRegistry struct {
	mu       sync.RWMutex
	keys     map[string]*key.Key
	order    []string
	now      func() time.Time
	newToken func() (string, error)
}

var _ key.Registry = (*KeyRegistry)(nil)

func NewKeyRegistry(opts ...Option) *KeyRegistry {
	r := &KeyRegistry{
		keys:     make(map[string]*key.Key),
		now:      time.Now,
		newToken: util.GenerateToken,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *KeyRegistry) Generate(owner string, duration time.Duration, maxUses int) (*key.Key, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner must not be empty", ierr.ErrInvalidParameter)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %s", ierr.ErrInvalidParameter, duration)
	}
	if maxUses <= 0 {
		return nil, fmt.Errorf("%w: max uses must be positive, got %d", ierr.ErrInvalidParameter, maxUses)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		token, err := r.newToken()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ierr.ErrInternalServer, err)
		}
		if _, exists := r.keys[token]; exists {
			continue
		}

		now := r.now()
		k := &key.Key{
			Token:     token,
			Owner:     owner,
			CreatedAt: now,
			ExpiresAt: now.Add(duration),
			MaxUses:   maxUses,
			Active:    true,
		}
		r.keys[token] = k
		r.order = append(r.order, token)

		created := *k
		return &created, nil
	}

	return nil, ierr.ErrTokenCollision
}

func (r *KeyRegistry) Validate(token string) key.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.keys[token]
	status := key.Check(k, r.now())
	if status != key.StatusValid {
		return key.Outcome{Status: status}
	}

	k.CurrentUses++
	return key.Outcome{
		Status:        key.StatusValid,
		Owner:         k.Owner,
		RemainingUses: k.MaxUses - k.CurrentUses,
		ExpiresAt:     k.ExpiresAt,
	}
}

func (r *KeyRegistry) Info(token string) (*key.Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.keys[token]
	if !ok {
		return nil, ierr.ErrKeyNotFound
	}
	keyCopy := *k
	return &keyCopy, nil
}

func (r *KeyRegistry) Revoke(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[token]
	if !ok {
		return ierr.ErrKeyNotFound
	}
	k.Active = false
	return nil
}

func (r *KeyRegistry) List() []*key.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]*key.Key, 0, len(r.order))
	for _, token := range r.order {
		keyCopy := *r.keys[token]
		keys = append(keys, &keyCopy)
	}
	return keys
}

func (r *KeyRegistry) Stats() key.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	stats := key.Stats{Total: len(r.keys)}
	for _, k := range r.keys {
		expired := k.IsExpired(now)
		if expired {
			stats.Expired++
		}
		if k.Active && !expired {
			stats.ActiveAndUnexpired++
		}
	}
	return stats
}
