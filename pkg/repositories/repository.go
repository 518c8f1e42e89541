package repositories

import "context"

// Repository persists serialized session snapshots keyed by session.
type Repository interface {
	Close(ctx context.Context) error
	SaveSnapshot(ctx context.Context, sessionKey string, timestamp int64, data []byte) error
	LoadSnapshot(ctx context.Context, sessionKey string) ([]byte, error)
	DeleteSnapshot(ctx context.Context, sessionKey string) error
}
