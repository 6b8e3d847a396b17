package access

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine decisions and the error paths that were collapsed
// into them. The fail-open counter exists so the write gate's availability
// posture stays visible in dashboards instead of degrading silently.
type Metrics struct {
	decisions     *prometheus.CounterVec
	storeFailures *prometheus.CounterVec
	failOpen      prometheus.Counter
}

// NewMetrics registers the engine metrics on the given registerer. A nil
// registerer yields a private registry so tests can construct engines
// without collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domus_access_decisions_total",
		Help: "Access decisions by check and outcome.",
	}, []string{"check", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domus_access_store_failures_total",
		Help: "Persistence failures absorbed by the engine, by check.",
	}, []string{"check"})
	failOpen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "domus_access_failopen_total",
		Help: "Writes permitted because sandbox detection failed.",
	})
	reg.MustRegister(decisions, failures, failOpen)
	return &Metrics{decisions: decisions, storeFailures: failures, failOpen: failOpen}
}

func (m *Metrics) decision(check string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.decisions.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) storeFailure(check string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(check).Inc()
}

func (m *Metrics) failedOpen() {
	if m == nil {
		return
	}
	m.failOpen.Inc()
}
