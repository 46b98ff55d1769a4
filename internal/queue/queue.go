// Package queue is the client-side durable store of pending operations.
// It is a single SQLite file in WAL mode: the whole point of the queue is
// surviving offline periods that outlast a process, so there is no
// in-memory fallback.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Kind identifies which authority procedure replays a queued operation.
type Kind string

const (
	KindReceive  Kind = "receive"
	KindTransfer Kind = "transfer"
	KindProduce  Kind = "produce"
	KindDispatch Kind = "dispatch"
)

// ErrDuplicateKey indicates an enqueue with an id already present. Ids are
// freshly generated idempotency keys, so this is a programming error in key
// generation, not an expected condition.
var ErrDuplicateKey = errors.New("queue: duplicate operation id")

// Operation is one captured user intent: the exact wire payload that will be
// replayed, keyed by its idempotency key. Payload is a plain byte slice so
// database/sql can scan the TEXT column straight into it.
type Operation struct {
	ID         string    `db:"id"`
	Kind       Kind      `db:"kind"`
	Payload    []byte    `db:"payload"`
	EnqueuedAt time.Time `db:"enqueued_at"`
	RetryCount int       `db:"retry_count"`
}

const schema = `
CREATE TABLE IF NOT EXISTS queued_operations (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	enqueued_at TIMESTAMP NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_queued_operations_enqueued_at
	ON queued_operations (enqueued_at);
`

// Store is the durable queue. Safe for concurrent use: enqueues may run
// while a drain iterates a snapshot taken at its start.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the queue file.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Enqueue persists op. EnqueuedAt is stamped here if unset.
func (s *Store) Enqueue(ctx context.Context, op *Operation) error {
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queued_operations (id, kind, payload, enqueued_at, retry_count)
		 VALUES (?, ?, ?, ?, ?)`,
		op.ID, op.Kind, string(op.Payload), op.EnqueuedAt, op.RetryCount)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, op.ID)
		}
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// ListPending returns all queued operations oldest-first. Rowid breaks ties
// between operations enqueued within the same timestamp resolution, so the
// user-intended causal order is preserved exactly.
func (s *Store) ListPending(ctx context.Context) ([]Operation, error) {
	var ops []Operation
	err := s.db.SelectContext(ctx, &ops,
		`SELECT id, kind, payload, enqueued_at, retry_count
		 FROM queued_operations ORDER BY enqueued_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	return ops, nil
}

// Remove deletes op id. Removing an absent id is a no-op, not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queued_operations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("queue: remove %s: %w", id, err)
	}
	return nil
}

// BumpRetry increments the retry counter and returns the new count.
func (s *Store) BumpRetry(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queued_operations SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("queue: bump retry %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("queue: bump retry %s: not found", id)
	}
	var count int
	err = s.db.GetContext(ctx, &count,
		`SELECT retry_count FROM queued_operations WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("queue: bump retry %s: not found", id)
		}
		return 0, fmt.Errorf("queue: bump retry %s: %w", id, err)
	}
	return count, nil
}

// Depth returns the number of pending operations.
func (s *Store) Depth(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM queued_operations`); err != nil {
		return 0, fmt.Errorf("queue: depth: %w", err)
	}
	return n, nil
}

// Clear wipes the queue. Administrative escape hatch, not used in normal flow.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queued_operations`); err != nil {
		return fmt.Errorf("queue: clear: %w", err)
	}
	return nil
}
