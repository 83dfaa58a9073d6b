package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/makkenzo/key-service-api/internal/config"
	"github.com/makkenzo/key-service-api/internal/handler"
	"github.com/makkenzo/key-service-api/internal/handler/dto"
	"github.com/makkenzo/key-service-api/internal/service"
	"github.com/makkenzo/key-service-api/internal/storage/memstorage"
)

const testAdminToken = "admin_token_123"

var keyPattern = regexp.MustCompile(`Key:\s+([A-Za-z0-9]{32})`)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	tokens, err := memstorage.NewAdminTokenStore([]string{testAdminToken}, bcrypt.MinCost)
	require.NoError(t, err)

	srv := httptest.NewServer(handler.NewRouter(handler.RouterDeps{
		KeyService:  service.NewKeyService(memstorage.NewKeyRegistry(), nil, nil, config.KeysConfig{}, logger),
		AuthService: service.NewAuthService(tokens, &config.AuthConfig{}, logger),
		Health:      handler.NewHealthHandler(nil, nil, logger),
		Logger:      logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateVerifyRevoke(t *testing.T) {
	srv := newTestServer(t)
	t.Setenv("KEYCTL_ADMIN_TOKEN", testAdminToken)
	saveFile := filepath.Join(t.TempDir(), "generated_keys.txt")

	out, err := run(t, "--server", srv.URL, "generate", "--owner", "alice", "--max-uses", "2", "--save", saveFile)
	require.NoError(t, err, out)
	m := keyPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	token := m[1]

	saved, err := os.ReadFile(saveFile)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "Key: "+token)
	assert.Contains(t, string(saved), "Owner: alice")

	out, err = run(t, "--server", srv.URL, "verify", token)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Key is valid")
	assert.Contains(t, out, "Remaining uses: 1")

	out, err = run(t, "--server", srv.URL, "info", token)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Uses:           1/2")

	out, err = run(t, "--server", srv.URL, "revoke", token)
	require.NoError(t, err, out)
	assert.Contains(t, out, token)

	out, err = run(t, "--server", srv.URL, "verify", token)
	require.Error(t, err)
	assert.Contains(t, out, "Key is not valid")
	assert.Contains(t, out, "revoked")
}

func TestListAndStatsJSON(t *testing.T) {
	srv := newTestServer(t)

	_, err := run(t, "--server", srv.URL, "--admin-token", testAdminToken, "generate", "--owner", "bob")
	require.NoError(t, err)

	out, err := run(t, "--server", srv.URL, "--admin-token", testAdminToken, "-o", "json", "list")
	require.NoError(t, err, out)
	var keys []dto.KeyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.Len(t, keys, 1)
	assert.Equal(t, "bob", keys[0].Owner)

	out, err = run(t, "--server", srv.URL, "--admin-token", testAdminToken, "-o", "json", "stats")
	require.NoError(t, err, out)
	var stats dto.StatsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.TotalKeys)
	assert.Equal(t, 1, stats.ActiveKeys)

	out, err = run(t, "--server", srv.URL, "--admin-token", testAdminToken, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "OWNER")
	assert.Contains(t, out, "active")
}

func TestAdminCommandsNeedToken(t *testing.T) {
	srv := newTestServer(t)
	t.Setenv("KEYCTL_ADMIN_TOKEN", "")
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = term.IsTerminal })

	_, err := run(t, "--server", srv.URL, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEYCTL_ADMIN_TOKEN")

	_, err = run(t, "--server", srv.URL, "--admin-token", "wrong", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestVerifyUnknownKeyFails(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "verify", "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, out, "not_found")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: healthy")
}

func TestGenerateRequiresOwner(t *testing.T) {
	_, err := run(t, "--admin-token", testAdminToken, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}
