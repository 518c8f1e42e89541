package queue

import "sync"

// ErrQueueFull is returned when an item is enqueued on a full queue
type ErrQueueFull struct{}

func (e *ErrQueueFull) Error() string {
	return "queue is full"
}

// InMemoryQueue implements an in-memory queue.
type InMemoryQueue struct {
	capacity int
	items    []interface{}
	ready    chan struct{}
	lock     sync.Mutex
}

// NewInMemoryQueue creates a new queue with the given capacity.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	return &InMemoryQueue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Enqueue adds an item to the end of the queue.
func (q *InMemoryQueue) Enqueue(item interface{}) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.items) >= q.capacity {
		return &ErrQueueFull{}
	}
	q.items = append(q.items, item)

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return nil
}

// ReadAllMessages removes and returns all pending items in the queue.
func (q *InMemoryQueue) ReadAllMessages() ([]interface{}, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	items := q.items
	q.items = nil
	return items, nil
}

// Size returns the current size of the queue.
func (q *InMemoryQueue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

// ClearQueue clears all items from the queue.
func (q *InMemoryQueue) ClearQueue() error {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.items = nil
	return nil
}

func (q *InMemoryQueue) Ready() <-chan struct{} {
	return q.ready
}
