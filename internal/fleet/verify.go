package fleet

import (
	"context"
	"fmt"
	"time"
)

func (r *Reconciler) verifyNodeAction(ctx context.Context, node Node, kwargs map[string]any) error {
	ratelimit, _ := kwargs["ratelimit"].(bool)
	return r.verifyNode(ctx, node, ratelimit)
}

func (r *Reconciler) restartNodeAction(ctx context.Context, node Node, _ map[string]any) error {
	return r.restartNode(ctx, node, false)
}

func (r *Reconciler) stopNodeAction(ctx context.Context, node Node, _ map[string]any) error {
	return r.stopNode(ctx, node, r.control.ControlFor(node))
}

// verifyNode is the top-level per-node reconciliation procedure. A
// paused supervisor skips it entirely, but the surrounding request
// still completes.
func (r *Reconciler) verifyNode(ctx context.Context, node Node, ratelimit bool) error {
	if r.isPaused() {
		return nil
	}

	start := time.Now()
	err := r.doVerifyNode(ctx, node, ratelimit)
	if r.metrics != nil {
		r.metrics.verifyDuration.Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = "failure"
		}
		r.metrics.verifyTotal.WithLabelValues(result).Inc()
	}
	return err
}

func (r *Reconciler) doVerifyNode(ctx context.Context, node Node, ratelimit bool) error {
	control := r.control.ControlFor(node)

	if node.Enabled && node.saved() {
		alive, err := InsuredCall(ctx, r, r.gate, r.logger, control.Alive)
		if err != nil {
			return err
		}
		if !alive {
			if err := r.restartNode(ctx, node, ratelimit); err != nil {
				return err
			}
		}
		if err := r.verifyNodeProcesses(ctx, node, control); err != nil {
			return err
		}
		return r.verifyNodeQueues(ctx, node, control)
	}

	alive, err := InsuredCall(ctx, r, r.gate, r.logger, control.Alive)
	if err != nil {
		return err
	}
	if alive {
		return r.stopNode(ctx, node, control)
	}
	return nil
}

// restartNode enforces the restart rate limit and broker cooldown.
// ratelimit=false is the operator-initiated Restart path, which
// always goes straight through.
func (r *Reconciler) restartNode(ctx context.Context, node Node, ratelimit bool) error {
	key := node.ID

	if !ratelimit {
		r.buckets.Forget(key)
		return r.verifyRestart(ctx, node)
	}

	if !r.gate.MayRestart() {
		return nil
	}
	if r.buckets.TryConsume(key) {
		return r.verifyRestart(ctx, node)
	}

	r.logger.Error().Str("node", node.ID).Msg("node restarted too often, disabling")
	if r.metrics != nil {
		r.metrics.restartTotal.WithLabelValues("rate_limited").Inc()
	}
	if err := r.store.DisableNode(ctx, node.ID); err != nil {
		r.logger.Error().Err(err).Str("node", node.ID).Msg("failed to disable node")
		return err
	}
	if r.metrics != nil {
		r.metrics.restartTotal.WithLabelValues("disabled").Inc()
		r.metrics.nodesDisabled.Inc()
	}
	r.buckets.Forget(key)
	return nil
}

// verifyRestart issues the restart and polls for liveness with a
// geometric backoff before giving up for this cycle.
func (r *Reconciler) verifyRestart(ctx context.Context, node Node) error {
	control := r.control.ControlFor(node)

	r.logger.Warn().Str("node", node.ID).Msg("restarting node")
	if err := InsuredVoidCall(ctx, r, r.gate, r.logger, control.Restart); err != nil {
		return err
	}

	for _, timeout := range pingTimeoutSchedule(r.pingMaxAttempts) {
		r.beacon.Touch()
		r.restartLog.Info(fmt.Sprintf("%s: ping with timeout %.2fs", node.ID, timeout))

		responded, err := InsuredCall(ctx, r, r.gate, r.logger, func(ctx context.Context) (bool, error) {
			return control.RespondsToPing(ctx, timeout)
		})
		if err != nil {
			return err
		}
		if responded {
			r.logger.Warn().Str("node", node.ID).Msg("successfully restarted")
			if r.metrics != nil {
				r.metrics.restartTotal.WithLabelValues("succeeded").Inc()
			}
			return nil
		}
	}

	r.logger.Warn().Str("node", node.ID).Msg("node does not respond after restart")
	if r.metrics != nil {
		r.metrics.restartTotal.WithLabelValues("no_response").Inc()
	}
	return nil
}

// verifyNodeQueues reconciles the node's observed consumer set against
// its declared queue list. DirectQueue is never cancelled.
func (r *Reconciler) verifyNodeQueues(ctx context.Context, node Node, control NodeControl) error {
	declared := toSet(node.Queues)

	reply, err := InsuredCall(ctx, r, r.gate, r.logger, control.ConsumingFrom)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}

	observed := make(map[string]struct{}, len(reply))
	for q := range reply {
		observed[q] = struct{}{}
	}

	for q := range symmetricDifference(observed, declared) {
		q := q
		switch {
		case isMember(declared, q):
			err = InsuredVoidCall(ctx, r, r.gate, r.logger, func(ctx context.Context) error {
				return control.AddQueue(ctx, q)
			})
		case q == node.DirectQueue:
			continue
		default:
			err = InsuredVoidCall(ctx, r, r.gate, r.logger, func(ctx context.Context) error {
				return control.CancelQueue(ctx, q)
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isMember(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// verifyNodeProcesses reconciles the node's reported autoscaler bounds
// against the declared min/max concurrency. A reply with no autoscaler
// section is silently skipped for this cycle.
func (r *Reconciler) verifyNodeProcesses(ctx context.Context, node Node, control NodeControl) error {
	type statsReply struct {
		stats AutoscalerStats
		ok    bool
	}

	reply, err := InsuredCall(ctx, r, r.gate, r.logger, func(ctx context.Context) (statsReply, error) {
		stats, ok, err := control.Stats(ctx)
		return statsReply{stats, ok}, err
	})
	if err != nil {
		return err
	}
	if !reply.ok {
		return nil
	}

	if reply.stats.Max == node.MaxConcurrency && reply.stats.Min == node.MinConcurrency {
		return nil
	}

	return InsuredVoidCall(ctx, r, r.gate, r.logger, func(ctx context.Context) error {
		return control.Autoscale(ctx, node.MaxConcurrency, node.MinConcurrency)
	})
}

// stopNode issues a stop with no verification follow-up; the next
// cycle re-checks.
func (r *Reconciler) stopNode(ctx context.Context, node Node, control NodeControl) error {
	r.logger.Warn().Str("node", node.ID).Msg("stopping node")
	return InsuredVoidCall(ctx, r, r.gate, r.logger, control.Stop)
}
