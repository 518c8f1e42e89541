package queue

// Queue represents a basic queue.
type Queue interface {
	Enqueue(item interface{}) error
	ReadAllMessages() ([]interface{}, error)
	Size() int
	ClearQueue() error
	// Ready returns a channel that receives a signal when the queue
	// transitions from empty to non-empty. Consumers select on it and
	// then drain with ReadAllMessages.
	Ready() <-chan struct{}
}
