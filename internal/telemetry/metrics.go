package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/physim/internal/engine"
	"github.com/san-kum/physim/internal/state"
)

const namespace = "physim"

// Metrics exports engine progress to Prometheus. It implements
// engine.Observer and owns a private registry.
type Metrics struct {
	steps        prometheus.Counter
	stepDuration prometheus.Histogram
	halts        *prometheus.CounterVec
	simTime      prometheus.Gauge
	lanes        prometheus.Gauge
	values       *prometheus.GaugeVec

	watch    []string
	registry *prometheus.Registry
}

// NewMetrics registers the collectors. Each key in watch is exported as the
// lane mean of its value after every step.
func NewMetrics(watch ...string) *Metrics {
	m := &Metrics{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of committed simulation steps",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time spent computing one step",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		halts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "halts_total",
			Help:      "Simulations halted, by failing phase and module",
		}, []string{"phase", "module"}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_time",
			Help:      "Elapsed simulated time of the last committed step",
		}),
		lanes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lanes",
			Help:      "Number of independent instances per step",
		}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_value",
			Help:      "Lane mean of a watched state key",
		}, []string{"key"}),
		watch:    watch,
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.steps, m.stepDuration, m.halts, m.simTime, m.lanes, m.values)
	return m
}

func (m *Metrics) OnStep(snap state.Snapshot, wall time.Duration) {
	m.steps.Inc()
	m.stepDuration.Observe(wall.Seconds())
	m.simTime.Set(snap.Time)
	m.lanes.Set(float64(snap.LaneCount()))

	for _, k := range m.watch {
		v, ok := snap.Get(k)
		if !ok {
			continue
		}
		n := snap.LaneCount()
		var sum float64
		for i := range n {
			sum += v.At(i)
		}
		m.values.WithLabelValues(k).Set(sum / float64(n))
	}
}

func (m *Metrics) OnHalt(err error) {
	phase, module := "unknown", "unknown"
	var se *engine.StepError
	if errors.As(err, &se) {
		phase, module = se.Phase.String(), se.Module
	}
	m.halts.WithLabelValues(phase, module).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
