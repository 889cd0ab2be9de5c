package dag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation for the engine. A nil
// *Metrics disables collection; every method is nil-safe so callers never
// guard instrumentation sites.
type Metrics struct {
	generations       *prometheus.CounterVec
	generationSeconds *prometheus.HistogramVec
	diffsComputed     prometheus.Counter
	stepFallbacks     prometheus.Counter
	nodes             prometheus.Gauge
	evalInFlight      prometheus.Gauge
}

// NewMetrics creates and registers the engine metrics with reg. Passing
// prometheus.DefaultRegisterer wires them into the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iterai",
			Name:      "generations_total",
			Help:      "Backend generation calls by operation, model, and status.",
		}, []string{"op", "model", "status"}),
		generationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "iterai",
			Name:      "generation_duration_seconds",
			Help:      "Backend generation latency by operation and model.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"op", "model"}),
		diffsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iterai",
			Name:      "diffs_computed_total",
			Help:      "Node diffs computed across all ComputeAllDiffs passes.",
		}),
		stepFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iterai",
			Name:      "step_parse_fallbacks_total",
			Help:      "Step generations where the strict JSON parse failed.",
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iterai",
			Name:      "graph_nodes",
			Help:      "Nodes currently held in the graph.",
		}),
		evalInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iterai",
			Name:      "evaluations_in_flight",
			Help:      "Evaluation generations currently in flight.",
		}),
	}

	reg.MustRegister(
		m.generations,
		m.generationSeconds,
		m.diffsComputed,
		m.stepFallbacks,
		m.nodes,
		m.evalInFlight,
	)
	return m
}

func (m *Metrics) observeGeneration(op, model string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.generations.WithLabelValues(op, model, status).Inc()
	m.generationSeconds.WithLabelValues(op, model).Observe(time.Since(start).Seconds())
}

func (m *Metrics) addDiffs(n int) {
	if m == nil {
		return
	}
	m.diffsComputed.Add(float64(n))
}

func (m *Metrics) stepFallback() {
	if m == nil {
		return
	}
	m.stepFallbacks.Inc()
}

func (m *Metrics) setNodes(n int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(n))
}

func (m *Metrics) evalStarted() {
	if m == nil {
		return
	}
	m.evalInFlight.Inc()
}

func (m *Metrics) evalFinished() {
	if m == nil {
		return
	}
	m.evalInFlight.Dec()
}
