package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Recorder with counters and a latency histogram.
type Prometheus struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	dispatches *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus registers the collectors on reg (prometheus.DefaultRegisterer
// when nil) under namespace ("asset_lifecycle" when empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "asset_lifecycle"
	}

	p := &Prometheus{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "operations_total",
			Help:      "Units of work by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "operation_seconds",
			Help:      "Unit of work latency by operation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"op"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "dispatch_total",
			Help:      "Outbox delivery attempts by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{p.operations, p.latency, p.dispatches} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveOperation(op, outcome string, seconds float64) {
	p.operations.WithLabelValues(op, outcome).Inc()
	p.latency.WithLabelValues(op).Observe(seconds)
}

func (p *Prometheus) ObserveDispatch(result string) {
	p.dispatches.WithLabelValues(result).Inc()
}
