package fleet

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// throttledLogger emits an Info line at most once every maxIterations
// calls, logging at Debug in between, so a hot loop (the reconciler's
// wake-up line, or the per-attempt ping log during a restart) never
// floods the log at Info level.
type throttledLogger struct {
	logger        zerolog.Logger
	maxIterations uint32
	count         atomic.Uint32
}

func newThrottledLogger(logger zerolog.Logger, maxIterations int) *throttledLogger {
	return &throttledLogger{logger: logger, maxIterations: uint32(maxIterations)}
}

// Info logs msg at Info level every maxIterations calls, and at Debug
// the rest of the time, so a hot loop never floods the log.
func (t *throttledLogger) Info(msg string) {
	n := t.count.Add(1)
	if n%t.maxIterations == 1 || t.maxIterations <= 1 {
		t.logger.Info().Msg(msg)
		return
	}
	t.logger.Debug().Msg(msg)
}
