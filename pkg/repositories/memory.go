package repositories

import (
	"context"
	"sync"
)

type snapshotRecord struct {
	timestamp int64
	data      []byte
}

// InMemoryRepository keeps snapshots in process memory. Useful for tests
// and for sessions that only need in-process suspend/resume.
type InMemoryRepository struct {
	lock      sync.RWMutex
	snapshots map[string]snapshotRecord
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		snapshots: make(map[string]snapshotRecord),
	}
}

func (r *InMemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *InMemoryRepository) SaveSnapshot(ctx context.Context, sessionKey string, timestamp int64, data []byte) error {
	copied := make([]byte, len(data))
	copy(copied, data)

	r.lock.Lock()
	defer r.lock.Unlock()
	r.snapshots[sessionKey] = snapshotRecord{timestamp: timestamp, data: copied}
	return nil
}

func (r *InMemoryRepository) LoadSnapshot(ctx context.Context, sessionKey string) ([]byte, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	record, ok := r.snapshots[sessionKey]
	if !ok {
		return nil, &ErrNotFound{}
	}

	copied := make([]byte, len(record.data))
	copy(copied, record.data)
	return copied, nil
}

func (r *InMemoryRepository) DeleteSnapshot(ctx context.Context, sessionKey string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.snapshots, sessionKey)
	return nil
}
