package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockControl struct {
	mock.Mock
}

func (m *mockControl) Alive(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
func (m *mockControl) Restart(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockControl) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
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
func (m *mockControl) Stats(ctx context.Context) (AutoscalerStats, bool, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(AutoscalerStats)
	return stats, args.Bool(1), args.Error(2)
}
func (m *mockControl) Autoscale(ctx context.Context, max, min int) error {
	return m.Called(ctx, max, min).Error(0)
}

type fakeStore struct {
	nodes    []Node
	disabled []string
}

func (s *fakeStore) ListNodes(ctx context.Context) ([]Node, error) {
	return s.nodes, nil
}
func (s *fakeStore) DisableNode(ctx context.Context, id string) error {
	s.disabled = append(s.disabled, id)
	return nil
}

func newTestReconciler(t *testing.T, control NodeControl, store Store) *Reconciler {
	t.Helper()
	factory := ControlFactoryFunc(func(Node) NodeControl { return control })
	if store == nil {
		store = &fakeStore{}
	}
	r, err := New(zerolog.Nop(), store, factory, Options{})
	require.NoError(t, err)
	return r
}

func TestVerifyNode_EnabledAliveNoDrift(t *testing.T) {
	control := &mockControl{}
	control.On("Alive", mock.Anything).Return(true, nil)
	control.On("Stats", mock.Anything).Return(AutoscalerStats{Min: 1, Max: 4}, true, nil)
	control.On("ConsumingFrom", mock.Anything).Return(map[string]any{"q1": struct{}{}}, nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", Enabled: true, Queues: []string{"q1"}, MinConcurrency: 1, MaxConcurrency: 4}

	err := r.verifyNode(context.Background(), node, false)
	require.NoError(t, err)
	control.AssertNotCalled(t, "Restart", mock.Anything)
	control.AssertExpectations(t)
}

func TestVerifyNode_EnabledDeadRestarts(t *testing.T) {
	control := &mockControl{}
	control.On("Alive", mock.Anything).Return(false, nil)
	control.On("Restart", mock.Anything).Return(nil)
	control.On("RespondsToPing", mock.Anything, mock.Anything).Return(true, nil).Once()
	control.On("Stats", mock.Anything).Return(AutoscalerStats{}, false, nil)
	control.On("ConsumingFrom", mock.Anything).Return(nil, nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", Enabled: true}

	err := r.verifyNode(context.Background(), node, false)
	require.NoError(t, err)
	control.AssertCalled(t, "Restart", mock.Anything)
}

func TestVerifyNode_DisabledButAliveStops(t *testing.T) {
	control := &mockControl{}
	control.On("Alive", mock.Anything).Return(true, nil)
	control.On("Stop", mock.Anything).Return(nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", Enabled: false}

	err := r.verifyNode(context.Background(), node, false)
	require.NoError(t, err)
	control.AssertCalled(t, "Stop", mock.Anything)
}

func TestVerifyNode_DisabledAndDeadNoOp(t *testing.T) {
	control := &mockControl{}
	control.On("Alive", mock.Anything).Return(false, nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", Enabled: false}

	err := r.verifyNode(context.Background(), node, false)
	require.NoError(t, err)
	control.AssertNotCalled(t, "Stop", mock.Anything)
}

func TestVerifyNode_PausedSkipsEntirely(t *testing.T) {
	control := &mockControl{}
	r := newTestReconciler(t, control, nil)
	r.Pause()

	err := r.verifyNode(context.Background(), Node{ID: "n1", Enabled: true}, false)
	require.NoError(t, err)
	control.AssertNotCalled(t, "Alive", mock.Anything)
}

func TestRestartNode_RateLimitedDisablesAfterExhaustion(t *testing.T) {
	control := &mockControl{}
	control.On("Restart", mock.Anything).Return(nil)
	control.On("RespondsToPing", mock.Anything, mock.Anything).Return(true, nil).Once()

	store := &fakeStore{}
	r := newTestReconciler(t, control, store)
	r.buckets, _ = NewTokenBucketRegistry("1/h")
	node := Node{ID: "n1"}

	require.NoError(t, r.restartNode(context.Background(), node, true))
	control.AssertNumberOfCalls(t, "Restart", 1)

	require.NoError(t, r.restartNode(context.Background(), node, true))
	control.AssertNumberOfCalls(t, "Restart", 1)
	assert.Equal(t, []string{"n1"}, store.disabled)
}

func TestRestartNode_ExplicitBypassesRateLimit(t *testing.T) {
	control := &mockControl{}
	control.On("Restart", mock.Anything).Return(nil)
	control.On("RespondsToPing", mock.Anything, mock.Anything).Return(true, nil)

	r := newTestReconciler(t, control, nil)
	r.buckets, _ = NewTokenBucketRegistry("1/h")
	node := Node{ID: "n1"}

	require.NoError(t, r.restartNode(context.Background(), node, false))
	require.NoError(t, r.restartNode(context.Background(), node, false))
	control.AssertNumberOfCalls(t, "Restart", 2)
}

func TestRestartNode_BlockedByBrokerGateCooldown(t *testing.T) {
	control := &mockControl{}
	r := newTestReconciler(t, control, nil)
	r.gate.OnRevive()

	require.NoError(t, r.restartNode(context.Background(), Node{ID: "n1"}, true))
	control.AssertNotCalled(t, "Restart", mock.Anything)
}

func TestVerifyRestart_GivesUpAfterSchedule(t *testing.T) {
	control := &mockControl{}
	control.On("Restart", mock.Anything).Return(nil)
	control.On("RespondsToPing", mock.Anything, mock.Anything).Return(false, nil)

	r := newTestReconciler(t, control, nil)
	r.pingMaxAttempts = 3

	err := r.verifyRestart(context.Background(), Node{ID: "n1"})
	require.NoError(t, err)
	control.AssertNumberOfCalls(t, "RespondsToPing", 3)
}

func TestVerifyNodeQueues_AddsMissingQueue(t *testing.T) {
	control := &mockControl{}
	control.On("ConsumingFrom", mock.Anything).Return(map[string]any{}, nil)
	control.On("AddQueue", mock.Anything, "q1").Return(nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", Queues: []string{"q1"}}

	err := r.verifyNodeQueues(context.Background(), node, control)
	require.NoError(t, err)
	control.AssertCalled(t, "AddQueue", mock.Anything, "q1")
}

func TestVerifyNodeQueues_CancelsUndeclaredQueue(t *testing.T) {
	control := &mockControl{}
	control.On("ConsumingFrom", mock.Anything).Return(map[string]any{"stale": struct{}{}}, nil)
	control.On("CancelQueue", mock.Anything, "stale").Return(nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1"}

	err := r.verifyNodeQueues(context.Background(), node, control)
	require.NoError(t, err)
	control.AssertCalled(t, "CancelQueue", mock.Anything, "stale")
}

func TestVerifyNodeQueues_NeverCancelsDirectQueue(t *testing.T) {
	control := &mockControl{}
	control.On("ConsumingFrom", mock.Anything).Return(map[string]any{"direct": struct{}{}}, nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", DirectQueue: "direct"}

	err := r.verifyNodeQueues(context.Background(), node, control)
	require.NoError(t, err)
	control.AssertNotCalled(t, "CancelQueue", mock.Anything, mock.Anything)
}

func TestVerifyNodeQueues_NoReplySkips(t *testing.T) {
	control := &mockControl{}
	control.On("ConsumingFrom", mock.Anything).Return(nil, nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", Queues: []string{"q1"}}

	err := r.verifyNodeQueues(context.Background(), node, control)
	require.NoError(t, err)
	control.AssertNotCalled(t, "AddQueue", mock.Anything, mock.Anything)
}

func TestVerifyNodeProcesses_AutoscalesOnMismatch(t *testing.T) {
	control := &mockControl{}
	control.On("Stats", mock.Anything).Return(AutoscalerStats{Min: 1, Max: 2}, true, nil)
	control.On("Autoscale", mock.Anything, 5, 2).Return(nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1", MinConcurrency: 2, MaxConcurrency: 5}

	err := r.verifyNodeProcesses(context.Background(), node, control)
	require.NoError(t, err)
	control.AssertCalled(t, "Autoscale", mock.Anything, 5, 2)
}

func TestVerifyNodeProcesses_NoAutoscalerSectionSkips(t *testing.T) {
	control := &mockControl{}
	control.On("Stats", mock.Anything).Return(AutoscalerStats{}, false, nil)

	r := newTestReconciler(t, control, nil)
	node := Node{ID: "n1"}

	err := r.verifyNodeProcesses(context.Background(), node, control)
	require.NoError(t, err)
	control.AssertNotCalled(t, "Autoscale", mock.Anything, mock.Anything, mock.Anything)
}

func TestStopNode_CallsStop(t *testing.T) {
	control := &mockControl{}
	control.On("Stop", mock.Anything).Return(nil)

	r := newTestReconciler(t, control, nil)
	err := r.stopNode(context.Background(), Node{ID: "n1"}, control)
	require.NoError(t, err)
	control.AssertCalled(t, "Stop", mock.Anything)
}

func TestInsuredCall_CancelledContextReturnsErrBrokerUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestReconciler(t, &mockControl{}, nil)
	_, err := InsuredCall(ctx, r, r.gate, r.logger, func(ctx context.Context) (bool, error) {
		return false, errors.New("broker down")
	})
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
}

func TestInsuredCall_PausesAndResumesAcrossFailure(t *testing.T) {
	r := newTestReconciler(t, &mockControl{}, nil)

	attempts := 0
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := InsuredCall(ctx, r, r.gate, r.logger, func(ctx context.Context) (bool, error) {
		attempts++
		if attempts < 2 {
			return false, errors.New("transient")
		}
		return true, nil
	})
	require.NoError(t, err)
	assert.False(t, r.isPaused(), "should resume after eventual success")
}
