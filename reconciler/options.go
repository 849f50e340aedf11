package reconciler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/super-flat/nodewatcher/logging"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(r *Reconciler)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(r *Reconciler)

// Apply implementation
func (f OptionFunc) Apply(r *Reconciler) {
	f(r)
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return OptionFunc(func(r *Reconciler) {
		r.logger = logger
	})
}

// WithBackoff bounds the exponential delay of the Backoff state
func WithBackoff(min, max time.Duration) Option {
	return OptionFunc(func(r *Reconciler) {
		r.backoff = newBackoff(min, max)
	})
}

// WithResyncLimit caps how many times per minute the loop enters
// Reconciling. Zero or less removes the cap.
func WithResyncLimit(perMinute int) Option {
	return OptionFunc(func(r *Reconciler) {
		r.limiter = newLimiter(perMinute)
	})
}

// WithRegisterer registers the loop's metrics on reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return OptionFunc(func(r *Reconciler) {
		r.metrics.register(reg)
	})
}

// WithTracer sets the tracer used for Reconciling and Streaming spans
func WithTracer(tracer trace.Tracer) Option {
	return OptionFunc(func(r *Reconciler) {
		r.tracer = tracer
	})
}

// WithShutdownTimeout bounds the shutdown notification
func WithShutdownTimeout(timeout time.Duration) Option {
	return OptionFunc(func(r *Reconciler) {
		r.shutdownTimeout = timeout
	})
}

// OnStateChange registers fn to be called on every state change. fn runs on
// the loop goroutine and must not block.
func OnStateChange(fn func(State)) Option {
	return OptionFunc(func(r *Reconciler) {
		r.onStateChange = fn
	})
}

func newBackoff(min, max time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min
	b.MaxInterval = max
	// no jitter, delays stay within [min, max]
	b.RandomizationFactor = 0
	// retry forever
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}
