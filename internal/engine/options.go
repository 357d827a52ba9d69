package engine

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/physim/internal/compute"
)

const tracerName = "github.com/san-kum/physim/internal/engine"

type options struct {
	batch     int
	backend   compute.Backend
	initial   map[string]initialValue
	logger    zerolog.Logger
	observers []Observer
	tracer    trace.Tracer
}

// initialValue is a starting value before it is shaped for the store.
type initialValue struct {
	scalar float64
	lanes  []float64
}

type Option func(*options)

func defaultOptions() options {
	return options{
		backend: compute.NewSerialBackend(),
		initial: make(map[string]initialValue),
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer(tracerName),
	}
}

// WithBatch runs n independent lanes. 0 keeps scalar mode.
func WithBatch(n int) Option {
	return func(o *options) { o.batch = n }
}

func WithBackend(b compute.Backend) Option {
	return func(o *options) {
		if b != nil {
			o.backend = b
		}
	}
}

// WithInitialState sets starting values, broadcast to every lane. It overrides
// module defaults.
func WithInitialState(values map[string]float64) Option {
	return func(o *options) {
		for k, v := range values {
			o.initial[k] = initialValue{scalar: v}
		}
	}
}

// WithInitialLanes sets per-lane starting values in batch mode.
func WithInitialLanes(values map[string][]float64) Option {
	return func(o *options) {
		for k, vs := range values {
			cp := make([]float64, len(vs))
			copy(cp, vs)
			o.initial[k] = initialValue{lanes: cp}
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
