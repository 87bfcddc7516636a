package notify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/fleetsupervisor/internal/fleet"
)

type mockControl struct {
	mock.Mock
}

func (m *mockControl) Alive(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
func (m *mockControl) Restart(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockControl) Stop(ctx context.Context) error     { return m.Called(ctx).Error(0) }
func (m *mockControl) RespondsToPing(ctx context.Context, timeout float64) (bool, error) {
	args := m.Called(ctx, timeout)
	return args.Bool(0), args.Error(1)
}
func (m *mockControl) ConsumingFrom(ctx context.Context) (map[string]any, error) {
	args := m.Called(ctx)
	reply, _ := args.Get(0).(map[string]any)
	return reply, args.Error(1)
}
func (m *mockControl) AddQueue(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}
func (m *mockControl) CancelQueue(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}
func (m *mockControl) Stats(ctx context.Context) (fleet.AutoscalerStats, bool, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(fleet.AutoscalerStats)
	return stats, args.Bool(1), args.Error(2)
}
func (m *mockControl) Autoscale(ctx context.Context, max, min int) error {
	return m.Called(ctx, max, min).Error(0)
}

type fakeStore struct {
	nodes []fleet.Node
}

func (s *fakeStore) ListNodes(ctx context.Context) ([]fleet.Node, error) { return s.nodes, nil }
func (s *fakeStore) DisableNode(ctx context.Context, id string) error    { return nil }

func newRunningReconciler(t *testing.T, control fleet.NodeControl, store fleet.Store) (*fleet.Reconciler, func()) {
	t.Helper()
	factory := fleet.ControlFactoryFunc(func(fleet.Node) fleet.NodeControl { return control })
	r, err := fleet.New(zerolog.Nop(), store, factory, fleet.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	return r, func() {
		cancel()
		<-done
	}
}

func TestHandle_UpsertWaitsForVerifyCompletion(t *testing.T) {
	control := &mockControl{}
	control.On("Alive", mock.Anything).Return(true, nil)
	control.On("Stats", mock.Anything).Return(fleet.AutoscalerStats{}, false, nil)
	control.On("ConsumingFrom", mock.Anything).Return(nil, nil)

	store := &fakeStore{nodes: []fleet.Node{{ID: "n1", Enabled: true}}}
	recon, stop := newRunningReconciler(t, control, store)
	defer stop()

	l := New(nil, "fleet_node_changes", store, recon, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		l.handle(context.Background(), `{"node_id":"n1","kind":"upsert"}`)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after verify completed")
	}
	control.AssertCalled(t, "Alive", mock.Anything)
}

func TestHandle_DeleteEnqueuesStopAndWaits(t *testing.T) {
	control := &mockControl{}
	control.On("Stop", mock.Anything).Return(nil)

	store := &fakeStore{}
	recon, stop := newRunningReconciler(t, control, store)
	defer stop()

	l := New(nil, "fleet_node_changes", store, recon, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		l.handle(context.Background(), `{"node_id":"n1","kind":"delete"}`)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after stop completed")
	}
	control.AssertCalled(t, "Stop", mock.Anything)
}

func TestHandle_MissingRowFallsBackToStop(t *testing.T) {
	control := &mockControl{}
	control.On("Stop", mock.Anything).Return(nil)

	store := &fakeStore{} // node no longer present, kind still "upsert"
	recon, stop := newRunningReconciler(t, control, store)
	defer stop()

	l := New(nil, "fleet_node_changes", store, recon, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		l.handle(context.Background(), `{"node_id":"n1","kind":"upsert"}`)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after fallback stop completed")
	}
	control.AssertCalled(t, "Stop", mock.Anything)
}

func TestHandle_MalformedPayloadIsIgnored(t *testing.T) {
	control := &mockControl{}
	store := &fakeStore{}
	recon, stop := newRunningReconciler(t, control, store)
	defer stop()

	l := New(nil, "fleet_node_changes", store, recon, zerolog.Nop())
	l.handle(context.Background(), `not json`)

	control.AssertNotCalled(t, "Alive", mock.Anything)
	control.AssertNotCalled(t, "Stop", mock.Anything)
}
