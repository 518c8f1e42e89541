package repositories

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		session_key TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		data BLOB NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create snapshots table: %v", err)
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, sessionKey string, timestamp int64, data []byte) error {
	q := `
	INSERT OR REPLACE INTO snapshots (session_key, timestamp, data)
	VALUES (?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, sessionKey, timestamp, data); err != nil {
		return fmt.Errorf("failed to insert snapshot: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, sessionKey string) ([]byte, error) {
	q := `
	SELECT data FROM snapshots WHERE session_key = ?;
	`
	var data []byte
	if err := r.db.QueryRowContext(ctx, q, sessionKey).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan snapshot: %v", err)
	}

	return data, nil
}

func (r *SQLiteRepository) DeleteSnapshot(ctx context.Context, sessionKey string) error {
	q := `
	DELETE FROM snapshots WHERE session_key = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, sessionKey); err != nil {
		return fmt.Errorf("failed to delete snapshot: %v", err)
	}

	return nil
}
