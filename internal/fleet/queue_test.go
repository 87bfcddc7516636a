package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueue_PutGet(t *testing.T) {
	q := NewRequestQueue(2)
	req := Request{Nodes: []Node{{ID: "a"}}, Completion: make(chan struct{})}

	require.NoError(t, q.Put(req))
	assert.Equal(t, 1, q.Len())

	got, err := q.Get(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Nodes[0].ID)
	assert.Equal(t, 0, q.Len())
}

func TestRequestQueue_Put_FullReturnsErrQueueFull(t *testing.T) {
	q := NewRequestQueue(1)
	require.NoError(t, q.Put(Request{Completion: make(chan struct{})}))

	err := q.Put(Request{Completion: make(chan struct{})})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestRequestQueue_Get_TimesOut(t *testing.T) {
	q := NewRequestQueue(1)
	_, err := q.Get(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, errDequeueTimeout)
}

func TestRequestQueue_Get_ContextCancelled(t *testing.T) {
	q := NewRequestQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Get(ctx, time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRequestQueue_TryGet_EmptyReturnsFalse(t *testing.T) {
	q := NewRequestQueue(1)
	_, ok := q.TryGet()
	assert.False(t, ok)
}

func TestRequestQueue_TryGet_DrainsBuffered(t *testing.T) {
	q := NewRequestQueue(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(Request{Completion: make(chan struct{})}))
	}

	count := 0
	for {
		_, ok := q.TryGet()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, q.Len())
}
