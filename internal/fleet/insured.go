package fleet

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
)

// ErrBrokerUnavailable is returned by InsuredCall only when ctx is
// cancelled before the wrapped operation could complete. Short of
// that, InsuredCall blocks and retries indefinitely.
var ErrBrokerUnavailable = errors.New("fleet: broker unavailable")

// PauseResumer is the subset of Reconciler that InsuredCall needs:
// pausing on broadcast failure and resuming (plus recording the
// revival on the BrokerGate) once a retried call succeeds.
type PauseResumer interface {
	Pause()
	Resume()
}

// insuredCallMaxDelay bounds the backoff between retries.
const insuredCallMaxDelay = 30 * time.Second

// InsuredCall wraps a single broadcast RPC against a node with
// connection-revive retry and pause-on-error. It invokes fn repeatedly
// until fn succeeds or ctx is cancelled; every failure pauses sup, and
// the first success following at least one failure resumes sup and
// records the revival on gate.
func InsuredCall[T any](ctx context.Context, sup PauseResumer, gate *BrokerGate, logger zerolog.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var failed bool

	err := retry.Do(
		func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			result = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(math.MaxUint32),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(insuredCallMaxDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			failed = true
			logger.Error().Err(err).Uint("attempt", n).Msg("broadcast call failed, pausing")
			sup.Pause()
		}),
	)

	if err != nil {
		var zero T
		return zero, ErrBrokerUnavailable
	}

	if failed {
		gate.OnRevive()
		sup.Resume()
	}

	return result, nil
}

// InsuredVoidCall is InsuredCall for operations with no return value
// (restart, stop, add_queue, cancel_queue, autoscale).
func InsuredVoidCall(ctx context.Context, sup PauseResumer, gate *BrokerGate, logger zerolog.Logger, fn func(ctx context.Context) error) error {
	_, err := InsuredCall(ctx, sup, gate, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
