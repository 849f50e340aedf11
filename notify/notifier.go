package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/super-flat/nodewatcher/logging"
	"github.com/super-flat/nodewatcher/membership"
)

const defaultTimeout = 5 * time.Second

// Notifier turns change summaries into messages and hands them to a Sink.
// Delivery is best effort: failures are logged and counted, never returned.
type Notifier struct {
	sink       Sink
	timeout    time.Duration
	logger     logging.Logger
	deliveries *prometheus.CounterVec
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithTimeout bounds each delivery
func WithTimeout(timeout time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithRegisterer registers the delivery counter on reg
func WithRegisterer(reg prometheus.Registerer) NotifierOption {
	return func(n *Notifier) {
		reg.MustRegister(n.deliveries)
	}
}

// NewNotifier creates a Notifier on top of sink
func NewNotifier(sink Sink, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sink:    sink,
		timeout: defaultTimeout,
		logger:  logging.DefaultLogger,
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodewatcher",
			Name:      "notifications_total",
			Help:      "Notifications handed to the sink, by result.",
		}, []string{"result"}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify formats and delivers one change summary
func (n *Notifier) Notify(ctx context.Context, summary membership.ChangeSummary) {
	n.deliver(ctx, Format(summary))
}

// Farewell delivers the shutdown notice
func (n *Notifier) Farewell(ctx context.Context) {
	n.deliver(ctx, ShutdownMessage())
}

func (n *Notifier) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.sink.Post(ctx, msg); err != nil {
		n.deliveries.WithLabelValues("failed").Inc()
		n.logger.Errorf("failed to deliver notification %q: %v", msg.Text, err)
		return
	}
	n.deliveries.WithLabelValues("delivered").Inc()
	n.logger.Debugf("delivered notification %q", msg.Text)
}
