package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database and ensures the
// snapshots table exists. The caller is responsible for calling Close().
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		session_key TEXT PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		data BYTEA NOT NULL
	);
	`
	if _, err := conn.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create snapshots table: %v", err)
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveSnapshot(ctx context.Context, sessionKey string, timestamp int64, data []byte) error {
	q := `
	INSERT INTO snapshots (session_key, timestamp, data) VALUES ($1, $2, $3)
	ON CONFLICT (session_key) DO UPDATE SET timestamp = $2, data = $3;
	`
	if _, err := r.conn.Exec(ctx, q, sessionKey, timestamp, data); err != nil {
		return fmt.Errorf("failed to insert snapshot: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadSnapshot(ctx context.Context, sessionKey string) ([]byte, error) {
	q := `
	SELECT data FROM snapshots WHERE session_key = $1;
	`
	var data []byte
	if err := r.conn.QueryRow(ctx, q, sessionKey).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan snapshot: %v", err)
	}

	return data, nil
}

func (r *PostgresRepository) DeleteSnapshot(ctx context.Context, sessionKey string) error {
	q := `
	DELETE FROM snapshots WHERE session_key = $1;
	`
	if _, err := r.conn.Exec(ctx, q, sessionKey); err != nil {
		return fmt.Errorf("failed to delete snapshot: %v", err)
	}

	return nil
}
