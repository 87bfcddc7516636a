package fleet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// dequeueTimeout bounds how long the reconciler loop blocks on an
// empty queue before interleaving idle-time housekeeping.
const dequeueTimeout = 1 * time.Second

// HealthBeacon receives a liveness touch every time the reconciler
// loop wakes, including while paused, so an external probe keeps
// seeing the supervisor as alive.
type HealthBeacon interface {
	Touch()
}

type noopBeacon struct{}

func (noopBeacon) Touch() {}

// Reconciler is the supervisor's single-threaded reconciliation loop.
// All suspension happens at explicit I/O calls; at most one action
// invocation is ever in flight.
type Reconciler struct {
	logger  zerolog.Logger
	store   Store
	control ControlFactory
	queue   *RequestQueue
	buckets *TokenBucketRegistry
	gate    *BrokerGate
	beacon  HealthBeacon
	metrics *Metrics

	verifyInterval  time.Duration
	pingMaxAttempts int

	pauseMu sync.Mutex
	paused  bool

	shuttingDown atomic.Bool

	wakeLog    *throttledLogger
	restartLog *throttledLogger

	// lastVerifyAll is only ever touched by the periodic-timer
	// goroutine, so it needs no lock.
	lastVerifyAll chan struct{}
}

// Options configures a Reconciler beyond its required collaborators.
type Options struct {
	QueueCapacity         int
	VerifyInterval        time.Duration
	RestartMaxRate        string
	BrokerRevivedCooldown time.Duration
	PingMaxAttempts       int
	Beacon                HealthBeacon
	Metrics               *Metrics
}

// New builds a Reconciler. store and control are the model-store and
// broker-transport collaborators; both must be non-nil.
func New(logger zerolog.Logger, store Store, control ControlFactory, opts Options) (*Reconciler, error) {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 256
	}
	if opts.VerifyInterval <= 0 {
		opts.VerifyInterval = 60 * time.Second
	}
	if opts.RestartMaxRate == "" {
		opts.RestartMaxRate = "1/m"
	}
	if opts.BrokerRevivedCooldown <= 0 {
		opts.BrokerRevivedCooldown = 35 * time.Second
	}
	if opts.PingMaxAttempts <= 0 {
		opts.PingMaxAttempts = 30
	}
	if opts.Beacon == nil {
		opts.Beacon = noopBeacon{}
	}

	buckets, err := NewTokenBucketRegistry(opts.RestartMaxRate)
	if err != nil {
		return nil, err
	}

	r := &Reconciler{
		logger:          logger.With().Str("component", "reconciler").Logger(),
		store:           store,
		control:         control,
		queue:           NewRequestQueue(opts.QueueCapacity),
		buckets:         buckets,
		gate:            NewBrokerGate(opts.BrokerRevivedCooldown),
		beacon:          opts.Beacon,
		metrics:         opts.Metrics,
		verifyInterval:  opts.VerifyInterval,
		pingMaxAttempts: opts.PingMaxAttempts,
	}
	r.wakeLog = newThrottledLogger(r.logger, 30)
	r.restartLog = newThrottledLogger(r.logger, 30)
	return r, nil
}

// Verify requests reconciliation of nodes. When ratelimit is true
// (the periodic verify-all's mode), restarts triggered by this
// request respect the per-node token bucket and broker cooldown.
func (r *Reconciler) Verify(nodes []Node, ratelimit bool) (chan struct{}, error) {
	return r.request(nodes, r.verifyNodeAction, map[string]any{"ratelimit": ratelimit})
}

// Restart unconditionally restarts nodes, bypassing the rate limiter,
// since it reflects an explicit operator action rather than routine
// drift correction.
func (r *Reconciler) Restart(nodes []Node) (chan struct{}, error) {
	return r.request(nodes, r.restartNodeAction, nil)
}

// Shutdown stops nodes. A disabled Node model prevents the next verify
// cycle from restarting it; an enabled one will be restarted on the
// next periodic verify-all.
func (r *Reconciler) Shutdown(nodes []Node) (chan struct{}, error) {
	return r.request(nodes, r.stopNodeAction, nil)
}

func (r *Reconciler) request(nodes []Node, action Action, kwargs map[string]any) (chan struct{}, error) {
	completion := make(chan struct{})
	req := Request{Nodes: nodes, Action: action, Kwargs: kwargs, Completion: completion}
	if err := r.queue.Put(req); err != nil {
		return nil, err
	}
	return completion, nil
}

// Pause flips the supervisor into paused mode. While paused, per-node
// verify is a no-op, but requests still complete. Idempotent.
func (r *Reconciler) Pause() {
	r.beacon.Touch()
	r.pauseMu.Lock()
	defer r.pauseMu.Unlock()
	if !r.paused {
		r.logger.Debug().Msg("pausing")
		r.paused = true
		if r.metrics != nil {
			r.metrics.paused.Set(1)
		}
	}
}

// Resume flips the supervisor out of paused mode. Idempotent.
func (r *Reconciler) Resume() {
	r.pauseMu.Lock()
	defer r.pauseMu.Unlock()
	if r.paused {
		r.logger.Debug().Msg("resuming")
		r.paused = false
		if r.metrics != nil {
			r.metrics.paused.Set(0)
		}
	}
}

func (r *Reconciler) isPaused() bool {
	r.pauseMu.Lock()
	defer r.pauseMu.Unlock()
	return r.paused
}

// RequestShutdown marks the reconciler for graceful stop: Run exits
// once the queue is drained.
func (r *Reconciler) RequestShutdown() {
	r.shuttingDown.Store(true)
}

// QueueDepth reports the number of requests currently buffered, for
// the fleet_queue_depth gauge.
func (r *Reconciler) QueueDepth() float64 {
	return float64(r.queue.Len())
}

// SetMetrics attaches Metrics after construction, since a GaugeFunc's
// callback needs a reference to the already-built Reconciler.
func (r *Reconciler) SetMetrics(m *Metrics) {
	r.metrics = m
}

// Run executes the main reconciliation loop until ctx is cancelled or
// a graceful shutdown has drained the queue. It is meant to run on its
// own goroutine; at most one action invocation is ever in flight.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info().Msg("started")
	for {
		if r.shuttingDown.Load() && r.queue.Len() == 0 {
			r.logger.Info().Msg("reconciler loop stopped")
			return
		}

		req, err := r.queue.Get(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, errDequeueTimeout) {
				r.beacon.Touch()
				continue
			}
			// ctx cancelled: wake any still-queued callers before exiting.
			r.drain()
			return
		}

		r.beacon.Touch()
		r.wakeLog.Info("wake-up")
		r.processRequest(ctx, req)
	}
}

func (r *Reconciler) processRequest(ctx context.Context, req Request) {
	defer close(req.Completion)
	for _, node := range req.Nodes {
		r.runAction(ctx, req.Action, node, req.Kwargs)
	}
}

func (r *Reconciler) runAction(ctx context.Context, action Action, node Node, kwargs map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("node", node.ID).Msg("action panicked")
		}
	}()
	if err := action(ctx, node, kwargs); err != nil {
		r.logger.Error().Err(err).Str("node", node.ID).Msg("action failed")
	}
}

// drain signals completion on every request still buffered, without
// running their actions, so callers blocked on a completion channel are woken even
// when Run exits via context cancellation rather than a graceful
// drain.
func (r *Reconciler) drain() {
	for {
		req, ok := r.queue.TryGet()
		if !ok {
			return
		}
		close(req.Completion)
	}
}

// RunVerifyAllTimer runs the periodic verify-all schedule on its own
// goroutine. At most one verify-all cycle is ever outstanding: a slow
// cycle is left to finish rather than stacking a new one on top of it.
func (r *Reconciler) RunVerifyAllTimer(ctx context.Context) {
	ticker := time.NewTicker(r.verifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tickVerifyAll(ctx)
		}
	}
}

func (r *Reconciler) tickVerifyAll(ctx context.Context) {
	ready := r.lastVerifyAll == nil
	if r.lastVerifyAll != nil {
		select {
		case <-r.lastVerifyAll:
			ready = true
		default:
		}
	}
	if !ready {
		return
	}

	nodes, err := r.store.ListNodes(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("list nodes for periodic verify-all failed")
		return
	}
	completion, err := r.Verify(nodes, true)
	if err != nil {
		r.logger.Error().Err(err).Msg("enqueue periodic verify-all failed")
		return
	}
	r.lastVerifyAll = completion
}
