package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the gateway. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Logins      *prometheus.CounterVec
	Signups     *prometheus.CounterVec
	Logouts     prometheus.Counter
	Duration    *prometheus.HistogramVec
	Degraded    prometheus.Gauge
	Identities  prometheus.Gauge
	LedgerTotal prometheus.Gauge
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillforge_auth_login_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		Signups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillforge_auth_signup_total",
			Help: "Signup attempts by result",
		}, []string{"result"}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "skillforge_auth_logout_total",
			Help: "Logouts",
		}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillforge_auth_operation_duration_seconds",
			Help:    "Duration of gateway operations, simulated latency included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1, 2.5},
		}, []string{"op"}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "skillforge_persistence_degraded",
			Help: "1 once durable storage has failed and the directory runs in memory only",
		}),
		Identities: f.NewGauge(prometheus.GaugeOpts{
			Name: "skillforge_directory_identities",
			Help: "Identities held by the directory, seed included",
		}),
		LedgerTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "skillforge_registrations",
			Help: "Registration events in the ledger",
		}),
	}
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.Logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) signup(result string) {
	if m != nil {
		m.Signups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) logout() {
	if m != nil {
		m.Logouts.Inc()
	}
}

func (m *Metrics) observe(op string, start time.Time) {
	if m != nil {
		m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) sizes(identities, events int) {
	if m != nil {
		m.Identities.Set(float64(identities))
		m.LedgerTotal.Set(float64(events))
	}
}

// MarkDegraded flips the persistence gauge. It is meant as a kv.Guard hook.
func (m *Metrics) MarkDegraded(error) {
	if m != nil {
		m.Degraded.Set(1)
	}
}
