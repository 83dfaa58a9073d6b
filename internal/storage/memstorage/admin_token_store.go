package memstorage

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// AdminTokenStore holds bcrypt hashes of the configured admin tokens; the
// plain values are not kept after construction.
type AdminTokenStore struct {
	mu     sync.RWMutex
	hashes [][]byte
}

func NewAdminTokenStore(tokens []string, cost int) (*AdminTokenStore, error) {
	store := &AdminTokenStore{}
	for i, token := range tokens {
		if token == "" {
			continue
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(token), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin token #%d: %w", i+1, err)
		}
		store.hashes = append(store.hashes, hashed)
	}
	return store, nil
}

func (s *AdminTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hashes)
}

func (s *AdminTokenStore) Match(token string) bool {
	if token == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, hashed := range s.hashes {
		if bcrypt.CompareHashAndPassword(hashed, []byte(token)) == nil {
			return true
		}
	}
	return false
}
