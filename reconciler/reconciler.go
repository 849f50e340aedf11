// Package reconciler drives the membership reconciliation loop: it waits for
// the lease, seeds the store from a snapshot, then folds the change stream
// into it and reports every transition.
package reconciler

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/super-flat/nodewatcher/kube"
	"github.com/super-flat/nodewatcher/lease"
	"github.com/super-flat/nodewatcher/logging"
	"github.com/super-flat/nodewatcher/membership"
	"github.com/super-flat/nodewatcher/requestid"
)

const (
	defaultBackoffMin      = time.Second
	defaultBackoffMax      = 30 * time.Second
	defaultResyncPerMinute = 30
	defaultShutdownTimeout = 5 * time.Second
	tracerName             = "github.com/super-flat/nodewatcher/reconciler"
)

// Source provides snapshots and change streams of the cluster membership
type Source interface {
	FetchSnapshot(ctx context.Context) (membership.Membership, membership.ResumeToken, error)
	OpenStream(ctx context.Context, token membership.ResumeToken) (membership.Stream, error)
}

// Notifier reports transitions. Delivery failures are the Notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, summary membership.ChangeSummary)
	Farewell(ctx context.Context)
}

// Reconciler runs the loop. It is not safe to Run twice concurrently.
type Reconciler struct {
	source   Source
	store    membership.Store
	leases   lease.Provider
	notifier Notifier

	logger          logging.Logger
	backoff         backoff.BackOff
	limiter         *rate.Limiter
	tracer          trace.Tracer
	metrics         *metrics
	shutdownTimeout time.Duration
	onStateChange   func(State)

	mtx   *sync.RWMutex
	state State
}

// New creates a Reconciler
func New(source Source, store membership.Store, leases lease.Provider, notifier Notifier, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:          source,
		store:           store,
		leases:          leases,
		notifier:        notifier,
		logger:          logging.DefaultLogger,
		backoff:         newBackoff(defaultBackoffMin, defaultBackoffMax),
		limiter:         newLimiter(defaultResyncPerMinute),
		tracer:          otel.Tracer(tracerName),
		metrics:         newMetrics(),
		shutdownTimeout: defaultShutdownTimeout,
		mtx:             &sync.RWMutex{},
		state:           AcquiringLeadership,
	}
	for _, opt := range opts {
		opt.Apply(r)
	}
	return r
}

// State returns the state the loop is currently in
func (r *Reconciler) State() State {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.state
}

func (r *Reconciler) setState(state State) {
	r.mtx.Lock()
	r.state = state
	r.mtx.Unlock()
	if r.onStateChange != nil {
		r.onStateChange(state)
	}
}

// Run executes the loop until ctx is done. On the way out it releases any
// held lease and sends the shutdown notice, bounded by the shutdown timeout.
func (r *Reconciler) Run(ctx context.Context) error {
	defer r.farewell()
	for {
		r.setState(AcquiringLeadership)
		held, err := r.leases.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Errorf("failed to acquire the lease: %v", err)
			if !r.wait(ctx) {
				return nil
			}
			continue
		}

		err = r.runEpoch(ctx, held)
		held.Release()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.logger.Errorf("leadership epoch %s ended: %v", held.ID(), err)
			if !r.wait(ctx) {
				return nil
			}
		}
	}
}

// wait sleeps through the Backoff state. It returns false when ctx ends first.
func (r *Reconciler) wait(ctx context.Context) bool {
	r.setState(Backoff)
	delay := r.backoff.NextBackOff()
	r.logger.Debugf("backing off for %s", delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Reconciler) farewell() {
	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()
	r.notifier.Farewell(ctx)
}

// runEpoch drives Reconciling and Streaming while held is valid. A nil
// return means the epoch ended without a failure worth backing off for,
// because the lease was lost or ctx is done.
func (r *Reconciler) runEpoch(ctx context.Context, held lease.Lease) error {
	epochID := uuid.NewString()
	logger := r.logger.WithField("epoch", epochID)
	logger.Infof("acquired lease %s", held.ID())
	r.metrics.epochs.Inc()

	// outgoing requests of this epoch carry its id
	ctx, cancel := context.WithCancel(requestid.NewContext(ctx, epochID))
	defer cancel()
	go func() {
		select {
		case <-held.Done():
			logger.Warn("lease lost")
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		r.setState(Reconciling)
		if err := r.limiter.Wait(ctx); err != nil {
			return nil
		}
		token, err := r.reconcile(ctx, held, logger, epochID)
		if !holding(ctx, held) {
			return nil
		}
		if err != nil {
			return err
		}

		r.setState(Streaming)
		reason, err := r.stream(ctx, held, logger, epochID, token)
		if !holding(ctx, held) {
			return nil
		}
		if err != nil {
			return err
		}
		r.metrics.interruptions.WithLabelValues(reason).Inc()
		logger.Infof("change stream ended (%s), resyncing", reason)
	}
}

// reconcile fetches a snapshot, folds it into the store and reports every
// transition. It returns the token the stream resumes from.
func (r *Reconciler) reconcile(ctx context.Context, held lease.Lease, logger logging.Logger, epochID string) (membership.ResumeToken, error) {
	ctx, span := r.tracer.Start(ctx, "Reconciling", trace.WithAttributes(attribute.String("epoch", epochID)))
	defer span.End()

	snapshot, token, err := r.source.FetchSnapshot(ctx)
	if err != nil {
		r.metrics.snapshotFails.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return "", errors.Wrap(err, "failed to fetch snapshot")
	}

	transitions, err := r.store.Reconcile(ctx, snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store rejected snapshot")
		return "", errors.Wrap(err, "failed to reconcile store")
	}
	current := r.store.Current()
	r.metrics.members.Set(float64(len(current)))
	span.SetAttributes(
		attribute.Int("members", len(snapshot)),
		attribute.Int("transitions", len(transitions)),
	)
	logger.Infof("reconciled %d members at version %s with %d transitions", len(snapshot), token, len(transitions))

	for _, t := range transitions {
		if !holding(ctx, held) {
			return "", errors.New("lease lost while reporting")
		}
		r.report(ctx, t, current)
	}
	return token, nil
}

// stream folds change events into the store until the stream ends. The
// reason it ended is returned; an error means the epoch cannot go on.
func (r *Reconciler) stream(ctx context.Context, held lease.Lease, logger logging.Logger, epochID string, token membership.ResumeToken) (string, error) {
	ctx, span := r.tracer.Start(ctx, "Streaming", trace.WithAttributes(
		attribute.String("epoch", epochID),
		attribute.String("resource_version", string(token)),
	))
	defer span.End()

	stream, err := r.source.OpenStream(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return "", errors.Wrap(err, "failed to open change stream")
	}
	r.backoff.Reset()
	closer := &onceCloser{stream: stream}
	defer closer.Close()

	// unblock a pending read when the epoch ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closer.Close()
		case <-stop:
		}
	}()

	events := 0
	defer func() { span.SetAttributes(attribute.Int("events", events)) }()
	for {
		event, err := stream.Next()
		// a read may complete after the lease is gone
		if !holding(ctx, held) {
			return "", nil
		}
		if err != nil {
			reason := interruptionReason(err)
			if reason != "closed" {
				span.RecordError(err)
				logger.Warnf("change stream failed after %d events: %v", events, err)
			}
			return reason, nil
		}
		events++

		transition, ok, err := r.store.Apply(ctx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store rejected event")
			return "", errors.Wrapf(err, "failed to apply %s event for %s", event.Type, event.Member.Identity)
		}
		if !ok {
			logger.Debugf("ignoring %s event for %s", event.Type, event.Member.Identity)
			continue
		}
		current := r.store.Current()
		r.metrics.members.Set(float64(len(current)))
		if !holding(ctx, held) {
			return "", nil
		}
		r.report(ctx, transition, current)
	}
}

// holding reports whether the epoch still owns the lease
func holding(ctx context.Context, held lease.Lease) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-held.Done():
		return false
	default:
		return true
	}
}

func (r *Reconciler) report(ctx context.Context, t membership.Transition, current membership.Membership) {
	r.metrics.transitions.WithLabelValues(t.Type.String()).Inc()
	r.notifier.Notify(ctx, membership.ChangeSummary{Transition: t, Current: current})
}

func interruptionReason(err error) string {
	var decodeErr *kube.DecodeError
	switch {
	case errors.Is(err, io.EOF):
		return "closed"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "read"
	}
}

type onceCloser struct {
	once   sync.Once
	stream membership.Stream
}

func (c *onceCloser) Close() {
	c.once.Do(func() {
		_ = c.stream.Close()
	})
}
