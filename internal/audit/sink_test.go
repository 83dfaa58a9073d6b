package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/key-service-api/internal/domain/key"
)

func TestIssuedEvent(t *testing.T) {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	k := &key.Key{
		Token:     "ABCDEFGHijklmnop0123456789abcdef",
		Owner:     "u1",
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
		MaxUses:   2,
		Active:    true,
	}

	e := IssuedEvent(k)
	assert.Equal(t, EventKeyIssued, e.Type)
	assert.Equal(t, "ABCDEFGH...", e.TokenPrefix)
	assert.Len(t, e.TokenHash, 64)
	assert.NotContains(t, e.TokenHash, k.Token)
	assert.Equal(t, "u1", e.Owner)
	assert.Equal(t, 2, e.MaxUses)
	require.NotNil(t, e.ExpiresAt)
	assert.Equal(t, k.ExpiresAt, *e.ExpiresAt)
	assert.Equal(t, created, e.OccurredAt)
}

func TestValidatedEventCarriesOutcome(t *testing.T) {
	e := ValidatedEvent("tok", key.Outcome{Status: key.StatusExhausted}, time.Now())
	assert.Equal(t, EventKeyValidated, e.Type)
	assert.Equal(t, key.StatusExhausted, e.Outcome)
	assert.Empty(t, e.Owner)
}

func TestFileSinkAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	pub := NewDirectPublisher(sink)
	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, RevokedEvent("tokentokentoken", time.Now())))
	require.NoError(t, pub.Publish(ctx, ValidatedEvent("tokentokentoken", key.Outcome{Status: key.StatusRevoked}, time.Now())))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, string(EventKeyRevoked), first["msg"])
	assert.Equal(t, "tokentok...", first["token_prefix"])
	assert.NotContains(t, first, "outcome")
	assert.Equal(t, string(key.StatusRevoked), second["outcome"])
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Record(context.Background(), Event{}))
	assert.NoError(t, s.Close())
}
