package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_EnqueueAndDrain(t *testing.T) {
	q := NewInMemoryQueue(10)

	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	assert.Equal(t, 2, q.Size())

	items, err := q.ReadAllMessages()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, items)
	assert.Equal(t, 0, q.Size())
}

func TestInMemoryQueue_Full(t *testing.T) {
	q := NewInMemoryQueue(1)

	require.NoError(t, q.Enqueue("a"))
	err := q.Enqueue("b")
	require.Error(t, err)
	assert.IsType(t, &ErrQueueFull{}, err)
	assert.Equal(t, 1, q.Size())
}

func TestInMemoryQueue_ReadySignal(t *testing.T) {
	q := NewInMemoryQueue(10)

	select {
	case <-q.Ready():
		t.Fatal("ready signal on empty queue")
	default:
	}

	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))

	select {
	case <-q.Ready():
	default:
		t.Fatal("no ready signal after enqueue")
	}

	// the signal coalesces; a second receive would block
	select {
	case <-q.Ready():
		t.Fatal("ready signal delivered twice")
	default:
	}
}

func TestInMemoryQueue_ClearQueue(t *testing.T) {
	q := NewInMemoryQueue(10)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.ClearQueue())
	assert.Equal(t, 0, q.Size())
}
