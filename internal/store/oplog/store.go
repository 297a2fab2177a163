// Package oplog keeps an append-only audit trail of every state-changing
// operation the manager performs, one SQLite row per operation.
package oplog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gttbracket/internal/logger"
)

// Operation is one audit row.
type Operation struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"ts"`
	PlanID    string `json:"plan_id"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
}

// Store writes and reads the operations table.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// New opens (creating if needed) the operations database at path.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("operations log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			plan_id TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_plan_id ON operations(plan_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing operations schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one operation. The audit trail is best-effort: a write
// failure is logged and swallowed so it never fails the operation it
// describes.
func (s *Store) Record(ctx context.Context, planID, action, detail string) {
	if s == nil || s.db == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (ts, plan_id, action, detail) VALUES (?, ?, ?, ?)`,
		time.Now().UnixMilli(), planID, action, detail)
	if err != nil {
		logger.Warnf("recording operation %s/%s failed: %v", planID, action, err)
	}
}

// List returns the most recent operations, newest first. An empty planID
// returns operations across all plans; limit <= 0 defaults to 100.
func (s *Store) List(ctx context.Context, planID string, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, ts, plan_id, action, detail FROM operations`
	args := []any{}
	if strings.TrimSpace(planID) != "" {
		query += ` WHERE plan_id = ?`
		args = append(args, planID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var detail sql.NullString
		if err := rows.Scan(&op.ID, &op.Timestamp, &op.PlanID, &op.Action, &detail); err != nil {
			return nil, err
		}
		op.Detail = detail.String
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
