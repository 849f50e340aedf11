package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	httpOutgoing           = "http_outgoing"
	requestsTotal          = "requests_total"
	requestDurationSeconds = "request_duration_seconds"
	dnsDurationSeconds     = "dns_duration_seconds"
	tlsDurationSeconds     = "tls_duration_seconds"
	inflightRequests       = "in_flight_requests"
)

// Instrumentation records metrics for outgoing requests made to a single
// named upstream
type Instrumentation struct {
	duration    *prometheus.HistogramVec
	requests    *prometheus.CounterVec
	dnsDuration *prometheus.HistogramVec
	tlsDuration *prometheus.HistogramVec
	inflight    prometheus.Gauge
}

var _ prometheus.Collector = (*Instrumentation)(nil)

// NewInstrumentation creates and registers the outgoing metrics of one
// upstream. The upstream name is used as the "service" constant label.
func NewInstrumentation(namespace string, upstream string, reg prometheus.Registerer) (*Instrumentation, error) {
	constLabels := map[string]string{"service": upstream}
	oi := &Instrumentation{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   httpOutgoing,
				Name:        requestsTotal,
				Help:        "A counter for outgoing requests from the wrapped client.",
				ConstLabels: constLabels,
			},
			[]string{"code", "method"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   httpOutgoing,
				Name:        requestDurationSeconds,
				Help:        "A histogram of outgoing request latencies.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method"},
		),
		dnsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   httpOutgoing,
				Name:        dnsDurationSeconds,
				Help:        "Trace dns latency histogram.",
				Buckets:     []float64{.005, .01, .025, .05},
				ConstLabels: constLabels,
			},
			[]string{"event"},
		),
		tlsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   httpOutgoing,
				Name:        tlsDurationSeconds,
				Help:        "Trace tls latency histogram.",
				Buckets:     []float64{.05, .1, .25, .5},
				ConstLabels: constLabels,
			},
			[]string{"event"},
		),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   httpOutgoing,
			Name:        inflightRequests,
			Help:        "A gauge of in-flight outgoing requests for the wrapped client.",
			ConstLabels: constLabels,
		}),
	}
	if err := reg.Register(oi); err != nil {
		return nil, err
	}
	return oi, nil
}

// RoundTripper wraps next so that every request passing through it is
// counted and timed. A nil next means http.DefaultTransport.
func (i *Instrumentation) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	trace := &promhttp.InstrumentTrace{
		DNSStart: func(t float64) {
			i.dnsDuration.WithLabelValues("dns_start").Observe(t)
		},
		DNSDone: func(t float64) {
			i.dnsDuration.WithLabelValues("dns_done").Observe(t)
		},
		TLSHandshakeStart: func(t float64) {
			i.tlsDuration.WithLabelValues("tls_handshake_start").Observe(t)
		},
		TLSHandshakeDone: func(t float64) {
			i.tlsDuration.WithLabelValues("tls_handshake_done").Observe(t)
		},
	}
	return promhttp.InstrumentRoundTripperInFlight(i.inflight,
		promhttp.InstrumentRoundTripperCounter(i.requests,
			promhttp.InstrumentRoundTripperTrace(trace,
				promhttp.InstrumentRoundTripperDuration(i.duration, next),
			),
		),
	)
}

// Client returns a copy of base whose transport is instrumented
func (i *Instrumentation) Client(base *http.Client) *http.Client {
	return &http.Client{
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
		Transport:     i.RoundTripper(base.Transport),
	}
}

// Describe implements prometheus.Collector interface.
func (i *Instrumentation) Describe(in chan<- *prometheus.Desc) {
	i.duration.Describe(in)
	i.requests.Describe(in)
	i.dnsDuration.Describe(in)
	i.tlsDuration.Describe(in)
	i.inflight.Describe(in)
}

// Collect implements prometheus.Collector interface.
func (i *Instrumentation) Collect(in chan<- prometheus.Metric) {
	i.duration.Collect(in)
	i.requests.Collect(in)
	i.dnsDuration.Collect(in)
	i.tlsDuration.Collect(in)
	i.inflight.Collect(in)
}
