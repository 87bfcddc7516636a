package fleet

import (
	"sync/atomic"
	"time"
)

// LastSeenBeacon is a HealthBeacon backed by a timestamp, used to
// drive the /healthz endpoint: the process is considered live as long
// as the reconciler loop has touched it recently.
type LastSeenBeacon struct {
	lastTouch atomic.Int64 // unix nanos
}

// NewLastSeenBeacon builds a beacon already touched at construction
// time, so a health check run before the reconciler's first loop
// iteration doesn't report stale.
func NewLastSeenBeacon(now time.Time) *LastSeenBeacon {
	b := &LastSeenBeacon{}
	b.lastTouch.Store(now.UnixNano())
	return b
}

func (b *LastSeenBeacon) Touch() {
	b.lastTouch.Store(time.Now().UnixNano())
}

// Healthy reports whether the beacon was touched within maxAge.
func (b *LastSeenBeacon) Healthy(maxAge time.Duration) bool {
	last := time.Unix(0, b.lastTouch.Load())
	return time.Since(last) <= maxAge
}
