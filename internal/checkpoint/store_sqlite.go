package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"github.com/agentctl/runtime/pkg/models"
)

// SQLiteStore persists checkpoints as JSON blobs in a single table,
// suitable for multi-process deployments that share a database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the checkpoints table at
// dsn. An empty dsn opens an in-memory database, useful for tests.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("checkpoint: create table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("checkpoint: create index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, thread_id, created_at, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET thread_id=excluded.thread_id, created_at=excluded.created_at, data=excluded.data
	`, cp.ID, cp.ThreadID, cp.CreatedAt, string(data))
	if err != nil {
		return fmt.Errorf("checkpoint: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, threadID, checkpointID string) (*models.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE id = ?`, checkpointID)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC LIMIT 1
	`, threadID)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context, threadID string) ([]*models.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: query: %w", err)
	}
	defer rows.Close()

	var list []*models.Checkpoint
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("checkpoint: scan: %w", err)
		}
		var cp models.Checkpoint
		if err := json.Unmarshal([]byte(data), &cp); err != nil {
			return nil, fmt.Errorf("checkpoint: decode: %w", err)
		}
		list = append(list, &cp)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID, checkpointID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, checkpointID)
	if err != nil {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("checkpoint: delete thread: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanCheckpoint(row *sql.Row) (*models.Checkpoint, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: scan: %w", err)
	}
	var cp models.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	return &cp, nil
}
