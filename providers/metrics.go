package providers

import "github.com/prometheus/client_golang/prometheus"

// metricsSet holds the process-wide Prometheus collectors the manager
// updates alongside its in-memory health/circuit state, so an operator
// can graph exactly the inputs the scoring algorithm consumes.
type metricsSet struct {
	callsTotal       *prometheus.CounterVec
	callErrors       *prometheus.CounterVec
	circuitState     *prometheus.GaugeVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	providerScore    *prometheus.GaugeVec
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exitbook", Subsystem: "providers", Name: "calls_total",
			Help: "Total provider calls attempted, by chain and provider.",
		}, []string{"chain", "provider"}),
		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exitbook", Subsystem: "providers", Name: "call_errors_total",
			Help: "Total provider call errors, by chain, provider, and error kind.",
		}, []string{"chain", "provider", "kind"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "exitbook", Subsystem: "providers", Name: "circuit_state",
			Help: "Circuit breaker state (0=closed,1=half-open,2=open).",
		}, []string{"chain", "provider"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exitbook", Subsystem: "providers", Name: "cache_hits_total",
			Help: "Response cache hits, by operation type.",
		}, []string{"operation"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exitbook", Subsystem: "providers", Name: "cache_misses_total",
			Help: "Response cache misses, by operation type.",
		}, []string{"operation"}),
		providerScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "exitbook", Subsystem: "providers", Name: "score",
			Help: "Most recently computed provider ranking score.",
		}, []string{"chain", "provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.callsTotal, m.callErrors, m.circuitState, m.cacheHits, m.cacheMisses, m.providerScore)
	}
	return m
}

func circuitStateGauge(s CircuitState) float64 {
	switch s {
	case CircuitHalfOpen:
		return 1
	case CircuitOpen:
		return 2
	default:
		return 0
	}
}
