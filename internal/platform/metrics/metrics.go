package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream stages, used as the "stage" label.
const (
	StageExtraction   = "extraction"
	StageVerification = "verification"
	StageIssuance     = "issuance"
)

// Metrics holds the service-level Prometheus metrics.
type Metrics struct {
	UsersRegistered      prometheus.Counter
	LoginFailures        prometheus.Counter
	Extractions          prometheus.Counter
	Verifications        prometheus.Counter
	CredentialsIssued    prometheus.Counter
	CacheEntriesRecorded *prometheus.CounterVec
	CacheLookups         *prometheus.CounterVec
	UpstreamFailures     *prometheus.CounterVec
	UpstreamLatency      *prometheus.HistogramVec
	CircuitOpen          prometheus.Gauge
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "docucred_users_registered_total",
			Help: "Total number of registered accounts",
		}),
		LoginFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "docucred_login_failures_total",
			Help: "Total number of rejected logins",
		}),
		Extractions: f.NewCounter(prometheus.CounterOpts{
			Name: "docucred_extractions_total",
			Help: "Total number of successful document extractions",
		}),
		Verifications: f.NewCounter(prometheus.CounterOpts{
			Name: "docucred_verifications_total",
			Help: "Total number of completed verifications",
		}),
		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "docucred_credentials_issued_total",
			Help: "Total number of verifiable credentials issued",
		}),
		CacheEntriesRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docucred_cache_entries_recorded_total",
			Help: "Cache entries recorded, by origin (extraction or correction)",
		}, []string{"origin"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docucred_cache_lookups_total",
			Help: "Cache lookups, by result (hit or miss)",
		}, []string{"result"}),
		UpstreamFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docucred_upstream_failures_total",
			Help: "Engine failures by stage",
		}, []string{"stage"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docucred_upstream_latency_seconds",
			Help:    "Engine call latency by stage",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "docucred_engine_circuit_open",
			Help: "1 while the engine circuit breaker is open",
		}),
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Metrics) IncUsersRegistered() {
	if m != nil {
		m.UsersRegistered.Inc()
	}
}

func (m *Metrics) IncLoginFailures() {
	if m != nil {
		m.LoginFailures.Inc()
	}
}

func (m *Metrics) IncExtractions() {
	if m != nil {
		m.Extractions.Inc()
	}
}

func (m *Metrics) IncVerifications() {
	if m != nil {
		m.Verifications.Inc()
	}
}

func (m *Metrics) IncCredentialsIssued() {
	if m != nil {
		m.CredentialsIssued.Inc()
	}
}

func (m *Metrics) IncCacheEntriesRecorded(origin string) {
	if m != nil {
		m.CacheEntriesRecorded.WithLabelValues(origin).Inc()
	}
}

func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncUpstreamFailure(stage string) {
	if m != nil {
		m.UpstreamFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveUpstreamLatency(stage string, seconds float64) {
	if m != nil {
		m.UpstreamLatency.WithLabelValues(stage).Observe(seconds)
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
