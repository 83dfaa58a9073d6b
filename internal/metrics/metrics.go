package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/makkenzo/key-service-api/internal/domain/key"
)

const namespace = "keysvc"

// Recorder holds the service counters. Each instance owns its collectors so
// tests can build isolated registries.
type Recorder struct {
	KeysGenerated  prometheus.Counter
	GenerateErrors prometheus.Counter
	Validations    *prometheus.CounterVec
	KeysRevoked    prometheus.Counter
	AuditFailures  prometheus.Counter
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		KeysGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_generated_total",
			Help:      "Number of keys issued.",
		}),
		GenerateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_generate_errors_total",
			Help:      "Number of rejected or failed key creation requests.",
		}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_validations_total",
			Help:      "Validation attempts by outcome.",
		}, []string{"outcome"}),
		KeysRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_revoked_total",
			Help:      "Number of successful revoke calls.",
		}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_publish_failures_total",
			Help:      "Audit events that could not be published.",
		}),
	}

	if reg != nil {
		reg.MustRegister(r.KeysGenerated, r.GenerateErrors, r.Validations, r.KeysRevoked, r.AuditFailures)
	}
	return r
}

func (r *Recorder) ObserveValidation(status key.Status) {
	r.Validations.WithLabelValues(string(status)).Inc()
}

type statsSource interface {
	Stats() key.Stats
}

// RegistryCollector exposes registry stats as gauges computed at scrape
// time, so nothing is cached between scrapes.
type RegistryCollector struct {
	source  statsSource
	total   *prometheus.Desc
	active  *prometheus.Desc
	expired *prometheus.Desc
}

func NewRegistryCollector(source statsSource) *RegistryCollector {
	return &RegistryCollector{
		source:  source,
		total:   prometheus.NewDesc(namespace+"_registry_keys", "Keys held by the registry.", nil, nil),
		active:  prometheus.NewDesc(namespace+"_registry_active_keys", "Active, unexpired keys.", nil, nil),
		expired: prometheus.NewDesc(namespace+"_registry_expired_keys", "Expired keys, revoked or not.", nil, nil),
	}
}

func (c *RegistryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.active
	ch <- c.expired
}

func (c *RegistryCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stats.Total))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.ActiveAndUnexpired))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.GaugeValue, float64(stats.Expired))
}
