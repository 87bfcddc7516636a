package broker

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/edvin/fleetsupervisor/internal/fleet"
	fleetv1 "github.com/edvin/fleetsupervisor/proto/fleetv1"
)

// nodeControl adapts a fleetv1.NodeControlClient dialed against a
// single node's control-plane address to fleet.NodeControl.
type nodeControl struct {
	client fleetv1.NodeControlClient
}

// ControlFactory resolves fleet.NodeControl by dialing (or reusing) a
// gRPC connection to each node's address through a shared ConnPool.
type ControlFactory struct {
	pool *ConnPool
}

// NewControlFactory builds a ControlFactory backed by pool.
func NewControlFactory(pool *ConnPool) *ControlFactory {
	return &ControlFactory{pool: pool}
}

func (f *ControlFactory) ControlFor(node fleet.Node) fleet.NodeControl {
	conn, err := f.pool.Get(node.GRPCAddress)
	if err != nil {
		return errControl{err: err}
	}
	return nodeControl{client: fleetv1.NewNodeControlClient(conn)}
}

// errControl is returned when dialing a node's address fails outright
// (bad address, DNS failure); every call reports that error so
// InsuredCall's retry loop keeps trying rather than panicking.
type errControl struct{ err error }

func (c errControl) Alive(context.Context) (bool, error)                   { return false, c.err }
func (c errControl) Restart(context.Context) error                        { return c.err }
func (c errControl) Stop(context.Context) error                           { return c.err }
func (c errControl) RespondsToPing(context.Context, float64) (bool, error) { return false, c.err }
func (c errControl) ConsumingFrom(context.Context) (map[string]any, error) { return nil, c.err }
func (c errControl) AddQueue(context.Context, string) error                { return c.err }
func (c errControl) CancelQueue(context.Context, string) error             { return c.err }
func (c errControl) Stats(context.Context) (fleet.AutoscalerStats, bool, error) {
	return fleet.AutoscalerStats{}, false, c.err
}
func (c errControl) Autoscale(context.Context, int, int) error { return c.err }

func (n nodeControl) Alive(ctx context.Context) (bool, error) {
	reply, err := n.client.Alive(ctx, &emptypb.Empty{})
	if err != nil {
		return false, err
	}
	return reply.GetValue(), nil
}

func (n nodeControl) Restart(ctx context.Context) error {
	_, err := n.client.Restart(ctx, &emptypb.Empty{})
	return err
}

func (n nodeControl) Stop(ctx context.Context) error {
	_, err := n.client.Stop(ctx, &emptypb.Empty{})
	return err
}

func (n nodeControl) RespondsToPing(ctx context.Context, timeout float64) (bool, error) {
	reply, err := n.client.Ping(ctx, durationpb.New(time.Duration(timeout*float64(time.Second))))
	if err != nil {
		if fleetv1.IsNoReply(err) {
			return false, nil
		}
		return false, err
	}
	return reply.GetValue(), nil
}

func (n nodeControl) ConsumingFrom(ctx context.Context) (map[string]any, error) {
	reply, err := n.client.ConsumingFrom(ctx, &emptypb.Empty{})
	if err != nil {
		if fleetv1.IsNoReply(err) {
			return nil, nil
		}
		return nil, err
	}
	return reply.AsMap(), nil
}

func (n nodeControl) AddQueue(ctx context.Context, name string) error {
	_, err := n.client.AddQueue(ctx, wrapperspb.String(name))
	return err
}

func (n nodeControl) CancelQueue(ctx context.Context, name string) error {
	_, err := n.client.CancelQueue(ctx, wrapperspb.String(name))
	return err
}

func (n nodeControl) Stats(ctx context.Context) (fleet.AutoscalerStats, bool, error) {
	reply, err := n.client.Stats(ctx, &emptypb.Empty{})
	if err != nil {
		if fleetv1.IsNoReply(err) {
			return fleet.AutoscalerStats{}, false, nil
		}
		return fleet.AutoscalerStats{}, false, err
	}

	autoscaler := reply.GetFields()["autoscaler"].GetStructValue()
	if autoscaler == nil {
		return fleet.AutoscalerStats{}, false, nil
	}
	fields := autoscaler.GetFields()
	minVal, hasMin := fields["min"]
	maxVal, hasMax := fields["max"]
	if !hasMin || !hasMax {
		return fleet.AutoscalerStats{}, false, nil
	}
	return fleet.AutoscalerStats{
		Min: int(minVal.GetNumberValue()),
		Max: int(maxVal.GetNumberValue()),
	}, true, nil
}

func (n nodeControl) Autoscale(ctx context.Context, max, min int) error {
	req, err := structpb.NewStruct(map[string]any{
		"min": min,
		"max": max,
	})
	if err != nil {
		return err
	}
	_, err = n.client.Autoscale(ctx, req)
	return err
}
