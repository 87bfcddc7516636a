package fleet

import (
	"sync"
	"time"
)

// BrokerGate tracks when the broker transport was last seen reviving
// after a connection failure, and answers whether enough time has
// passed for nodes to have reconnected and therefore be able to
// respond to broadcast commands.
type BrokerGate struct {
	mu             sync.Mutex
	lastRevived    time.Time
	revived        bool
	reviveCooldown time.Duration
	now            func() time.Time
}

// NewBrokerGate builds a gate with the given post-revival cooldown.
func NewBrokerGate(cooldown time.Duration) *BrokerGate {
	return &BrokerGate{reviveCooldown: cooldown, now: time.Now}
}

// OnRevive records that the broker transport just reconnected. A
// transport implementation calls this from its revival callback; the
// Reconciler is resumed separately by the caller.
func (g *BrokerGate) OnRevive() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastRevived = g.now()
	g.revived = true
}

// MayRestart reports whether enough time has passed since the last
// broker revival (or whether the broker has never flapped) to safely
// restart a rate-limited node.
func (g *BrokerGate) MayRestart() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.revived {
		return true
	}
	return g.now().Sub(g.lastRevived) > g.reviveCooldown
}
