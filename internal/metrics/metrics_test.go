package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makkenzo/key-service-api/internal/domain/key"
)

type staticStats key.Stats

func (s staticStats) Stats() key.Stats { return key.Stats(s) }

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.KeysGenerated.Inc()
	r.ObserveValidation(key.StatusValid)
	r.ObserveValidation(key.StatusValid)
	r.ObserveValidation(key.StatusRevoked)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.KeysGenerated))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Validations.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Validations.WithLabelValues("revoked")))
}

func TestRecorderWithoutRegistry(t *testing.T) {
	r := NewRecorder(nil)
	r.KeysRevoked.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.KeysRevoked))
}

func TestRegistryCollector(t *testing.T) {
	c := NewRegistryCollector(staticStats{Total: 5, ActiveAndUnexpired: 2, Expired: 3})

	expected := `
# HELP keysvc_registry_active_keys Active, unexpired keys.
# TYPE keysvc_registry_active_keys gauge
keysvc_registry_active_keys 2
# HELP keysvc_registry_expired_keys Expired keys, revoked or not.
# TYPE keysvc_registry_expired_keys gauge
keysvc_registry_expired_keys 3
# HELP keysvc_registry_keys Keys held by the registry.
# TYPE keysvc_registry_keys gauge
keysvc_registry_keys 5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}
