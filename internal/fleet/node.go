package fleet

import "context"

// Node is the declared state of a worker node, as read from the model
// store. The supervisor treats it as read-mostly: the only mutation it
// ever performs is Disable, which the store persists.
type Node struct {
	ID   string
	Name string

	Enabled bool

	// Queues is the declared set of queue names the node must consume
	// from. DirectQueue is a reserved queue that must never be
	// cancelled even if it is absent from Queues.
	Queues      []string
	DirectQueue string

	MinConcurrency int
	MaxConcurrency int

	// GRPCAddress is the node's control-plane endpoint, used to build
	// (or look up) its NodeControl connection.
	GRPCAddress string
}

// saved reports whether the node has a stable store-assigned identity.
// A Node with no ID is transient (never persisted) and is treated the
// same as a disabled node by verifyNode.
func (n Node) saved() bool {
	return n.ID != ""
}

// AutoscalerStats is the "autoscaler" entry of a NodeControl.Stats()
// reply. A reply with no such entry is represented by Stats returning
// ok=false.
type AutoscalerStats struct {
	Min int
	Max int
}

// NodeControl is the broadcast capability the supervisor invokes over
// the broker's control plane. Implementations are expected to be thin
// adapters over a transport (gRPC, in this module's case); all of them
// may block on network I/O and must respect ctx cancellation.
type NodeControl interface {
	Alive(ctx context.Context) (bool, error)
	Restart(ctx context.Context) error
	Stop(ctx context.Context) error
	RespondsToPing(ctx context.Context, timeout float64) (bool, error)

	// ConsumingFrom returns the queues the node is currently consuming
	// from, mapped to opaque per-queue info. A nil map with a nil error
	// means "no reply" (the node didn't answer in time), which is
	// distinct from an empty map (the node replied: consuming from
	// nothing).
	ConsumingFrom(ctx context.Context) (map[string]any, error)
	AddQueue(ctx context.Context, name string) error
	CancelQueue(ctx context.Context, name string) error

	// Stats returns the node's reported autoscaler bounds. ok is false
	// when the reply has no "autoscaler" section; that is not treated
	// as an error.
	Stats(ctx context.Context) (stats AutoscalerStats, ok bool, err error)
	Autoscale(ctx context.Context, max, min int) error
}

// Store is the model-store collaborator.
// The supervisor core only reads node state and disables nodes; list
// and disable are the only two operations it needs.
type Store interface {
	ListNodes(ctx context.Context) ([]Node, error)
	DisableNode(ctx context.Context, id string) error
}

// ControlFactory resolves the NodeControl capability for a given node.
// A production implementation dials (or reuses) a gRPC connection to
// node.GRPCAddress; tests supply a fake.
type ControlFactory interface {
	ControlFor(node Node) NodeControl
}

// ControlFactoryFunc adapts a plain function to ControlFactory.
type ControlFactoryFunc func(node Node) NodeControl

func (f ControlFactoryFunc) ControlFor(node Node) NodeControl { return f(node) }
