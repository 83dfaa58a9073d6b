package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewZapLoggerFallsBackToInfo(t *testing.T) {
	l, err := NewZapLogger("not-a-level")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewZapLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewJSONFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")

	l, err := NewJSONFileLogger(path)
	require.NoError(t, err)
	l.Info("key.issued", zap.String("owner", "u1"))
	l.Info("key.revoked", zap.String("owner", "u2"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "key.issued", entry["msg"])
	assert.Equal(t, "u1", entry["owner"])
	assert.NotContains(t, entry, "level")
}
