package memstorage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/key-service-api/internal/domain/key"
	"github.com/makkenzo/key-service-api/internal/ierr"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T) (*KeyRegistry, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return NewKeyRegistry(WithClock(clock.Now)), clock
}

func TestGenerate(t *testing.T) {
	r, clock := newTestRegistry(t)

	k, err := r.Generate("u1", time.Hour, 2)
	require.NoError(t, err)

	assert.Len(t, k.Token, key.TokenLength)
	assert.Equal(t, "u1", k.Owner)
	assert.Equal(t, 2, k.MaxUses)
	assert.Equal(t, 0, k.CurrentUses)
	assert.True(t, k.Active)
	assert.Equal(t, clock.Now(), k.CreatedAt)
	assert.Equal(t, clock.Now().Add(time.Hour), k.ExpiresAt)
	for _, c := range k.Token {
		assert.Contains(t, key.TokenAlphabet, string(c))
	}
}

func TestGenerateInvalidParameters(t *testing.T) {
	r, _ := newTestRegistry(t)

	tests := []struct {
		name     string
		owner    string
		duration time.Duration
		maxUses  int
	}{
		{"empty owner", "", time.Hour, 1},
		{"zero duration", "u1", 0, 1},
		{"negative duration", "u1", -time.Second, 1},
		{"zero max uses", "u1", time.Hour, 0},
		{"negative max uses", "u1", time.Hour, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := r.Generate(tt.owner, tt.duration, tt.maxUses)
			require.Error(t, err)
			assert.Nil(t, k)
			assert.True(t, errors.Is(err, ierr.ErrInvalidParameter))
		})
	}

	assert.Equal(t, 0, r.Stats().Total, "rejected calls must not touch the registry")
}

func TestGenerateUniqueTokens(t *testing.T) {
	r, _ := newTestRegistry(t)

	const n = 5000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		k, err := r.Generate("bulk", time.Hour, 1)
		require.NoError(t, err)
		_, dup := seen[k.Token]
		require.False(t, dup, "duplicate token %s", k.Token)
		seen[k.Token] = struct{}{}
	}
	assert.Equal(t, n, r.Stats().Total)
}

func TestGenerateRefusesToOverwrite(t *testing.T) {
	tokens := []string{"AAAA", "AAAA", "AAAA", "AAAA", "BBBB"}
	i := 0
	gen := func() (string, error) {
		tok := tokens[i]
		i++
		return tok, nil
	}
	r := NewKeyRegistry(WithTokenGenerator(gen))

	first, err := r.Generate("u1", time.Hour, 1)
	require.NoError(t, err)
	require.Equal(t, "AAAA", first.Token)

	_, err = r.Generate("u2", time.Hour, 1)
	require.ErrorIs(t, err, ierr.ErrTokenCollision)

	info, err := r.Info("AAAA")
	require.NoError(t, err)
	assert.Equal(t, "u1", info.Owner)

	second, err := r.Generate("u3", time.Hour, 1)
	require.NoError(t, err)
	assert.Equal(t, "BBBB", second.Token)
}

func TestGenerateTokenSourceFailure(t *testing.T) {
	r := NewKeyRegistry(WithTokenGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))

	_, err := r.Generate("u1", time.Hour, 1)
	require.ErrorIs(t, err, ierr.ErrInternalServer)
	assert.Equal(t, 0, r.Stats().Total)
}

func TestValidateUsageCeiling(t *testing.T) {
	r, _ := newTestRegistry(t)

	k, err := r.Generate("u1", time.Hour, 2)
	require.NoError(t, err)

	first := r.Validate(k.Token)
	require.Equal(t, key.StatusValid, first.Status)
	assert.Equal(t, "u1", first.Owner)
	assert.Equal(t, 1, first.RemainingUses)
	assert.Equal(t, k.ExpiresAt, first.ExpiresAt)

	second := r.Validate(k.Token)
	require.Equal(t, key.StatusValid, second.Status)
	assert.Equal(t, 0, second.RemainingUses)

	third := r.Validate(k.Token)
	assert.Equal(t, key.StatusExhausted, third.Status)
	assert.False(t, third.Valid())

	info, err := r.Info(k.Token)
	require.NoError(t, err)
	assert.Equal(t, 2, info.CurrentUses, "rejected validation must not increment")
}

func TestValidateExactlyKSucceed(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, maxUses := range []int{1, 3, 10} {
		k, err := r.Generate("u1", time.Hour, maxUses)
		require.NoError(t, err)

		for i := 0; i < maxUses; i++ {
			out := r.Validate(k.Token)
			require.Equal(t, key.StatusValid, out.Status, "use %d of %d", i+1, maxUses)
			assert.Equal(t, maxUses-i-1, out.RemainingUses)
		}
		assert.Equal(t, key.StatusExhausted, r.Validate(k.Token).Status)
	}
}

func TestValidateNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	out := r.Validate("unknown-token")
	assert.Equal(t, key.StatusNotFound, out.Status)
	assert.Empty(t, out.Owner)
}

func TestValidateExpired(t *testing.T) {
	r, clock := newTestRegistry(t)

	k, err := r.Generate("u1", time.Hour, 5)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, key.StatusValid, r.Validate(k.Token).Status, "expiry is strictly after expires_at")

	clock.Advance(time.Nanosecond)
	assert.Equal(t, key.StatusExpired, r.Validate(k.Token).Status)

	info, err := r.Info(k.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, info.CurrentUses)
}

func TestValidateRevokedBeforeExpired(t *testing.T) {
	r, clock := newTestRegistry(t)

	k, err := r.Generate("u1", time.Minute, 1)
	require.NoError(t, err)
	require.NoError(t, r.Revoke(k.Token))
	clock.Advance(time.Hour)

	assert.Equal(t, key.StatusRevoked, r.Validate(k.Token).Status)
}

func TestValidateExpiredBeforeExhausted(t *testing.T) {
	r, clock := newTestRegistry(t)

	k, err := r.Generate("u1", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, r.Validate(k.Token).Valid())
	clock.Advance(time.Hour)

	assert.Equal(t, key.StatusExpired, r.Validate(k.Token).Status)
}

func TestCreateRevokeValidate(t *testing.T) {
	r, _ := newTestRegistry(t)

	k, err := r.Generate("u1", time.Hour, 3)
	require.NoError(t, err)
	require.NoError(t, r.Revoke(k.Token))

	assert.Equal(t, key.StatusRevoked, r.Validate(k.Token).Status)
}

func TestRevokeIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)

	k, err := r.Generate("u1", time.Hour, 1)
	require.NoError(t, err)

	require.NoError(t, r.Revoke(k.Token))
	require.NoError(t, r.Revoke(k.Token))

	info, err := r.Info(k.Token)
	require.NoError(t, err)
	assert.False(t, info.Active)
}

func TestRevokeNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Revoke("missing")
	assert.ErrorIs(t, err, ierr.ErrKeyNotFound)
}

func TestInfoIsReadOnly(t *testing.T) {
	r, clock := newTestRegistry(t)

	k, err := r.Generate("u1", time.Minute, 1)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	info, err := r.Info(k.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, info.CurrentUses)
	assert.True(t, info.Active)
	assert.True(t, info.IsExpired(clock.Now()))

	info.CurrentUses = 99
	info.Active = false
	again, err := r.Info(k.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, again.CurrentUses, "returned record must be a copy")
	assert.True(t, again.Active)

	_, err = r.Info("missing")
	assert.ErrorIs(t, err, ierr.ErrKeyNotFound)
}

func TestListInsertionOrder(t *testing.T) {
	r, _ := newTestRegistry(t)

	var tokens []string
	for _, owner := range []string{"a", "b", "c"} {
		k, err := r.Generate(owner, time.Hour, 1)
		require.NoError(t, err)
		tokens = append(tokens, k.Token)
	}
	require.NoError(t, r.Revoke(tokens[1]))

	list := r.List()
	require.Len(t, list, 3)
	for i, k := range list {
		assert.Equal(t, tokens[i], k.Token)
	}
	assert.False(t, list[1].Active)
}

func TestStats(t *testing.T) {
	r, clock := newTestRegistry(t)

	assert.Equal(t, key.Stats{}, r.Stats())

	_, err := r.Generate("short", time.Minute, 1)
	require.NoError(t, err)
	_, err = r.Generate("long", 2*time.Hour, 1)
	require.NoError(t, err)
	revoked, err := r.Generate("revoked", 2*time.Hour, 1)
	require.NoError(t, err)
	require.NoError(t, r.Revoke(revoked.Token))
	revokedShort, err := r.Generate("revoked-short", time.Minute, 1)
	require.NoError(t, err)
	require.NoError(t, r.Revoke(revokedShort.Token))

	assert.Equal(t, key.Stats{Total: 4, ActiveAndUnexpired: 2, Expired: 0}, r.Stats())

	clock.Advance(time.Hour)
	assert.Equal(t, key.Stats{Total: 4, ActiveAndUnexpired: 1, Expired: 2}, r.Stats())
}

func TestConcurrentValidateSingleUse(t *testing.T) {
	r, _ := newTestRegistry(t)

	k, err := r.Generate("u1", time.Hour, 1)
	require.NoError(t, err)

	const workers = 64
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		out   = make(chan key.Outcome, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out <- r.Validate(k.Token)
		}()
	}
	close(start)
	wg.Wait()
	close(out)

	valid, exhausted := 0, 0
	for o := range out {
		switch o.Status {
		case key.StatusValid:
			valid++
		case key.StatusExhausted:
			exhausted++
		}
	}
	assert.Equal(t, 1, valid)
	assert.Equal(t, workers-1, exhausted)

	info, err := r.Info(k.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, info.CurrentUses)
}

func TestConcurrentMixedOperations(t *testing.T) {
	r, _ := newTestRegistry(t)

	k, err := r.Generate("u1", time.Hour, 50)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	valid := 0
	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if r.Validate(k.Token).Valid() {
				mu.Lock()
				valid++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			_ = r.List()
			_ = r.Stats()
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Generate("other", time.Hour, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, valid)
	assert.Equal(t, 101, r.Stats().Total)
}
