package reconciler

import "github.com/prometheus/client_golang/prometheus"

const namespace = "nodewatcher"

type metrics struct {
	transitions   *prometheus.CounterVec
	interruptions *prometheus.CounterVec
	snapshotFails prometheus.Counter
	epochs        prometheus.Counter
	members       prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Membership transitions emitted, by verb.",
		}, []string{"verb"}),
		interruptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_interruptions_total",
			Help:      "Change streams that ended and forced a resync, by reason.",
		}, []string{"reason"}),
		snapshotFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Snapshot fetches that failed.",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leadership_epochs_total",
			Help:      "Leases acquired by this instance.",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members",
			Help:      "Members currently in the store.",
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.transitions, m.interruptions, m.snapshotFails, m.epochs, m.members)
}
