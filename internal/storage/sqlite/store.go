// Package sqlite persists coordinator recovery state between runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/defense-coordinator/internal/defense/controller"
	"github.com/signalsfoundry/defense-coordinator/model"
)

// Store provides SQLite-backed persistence for the assignment ledger and
// reassignment queue. Threat records are deliberately not persisted; they
// rebuild from live sensor reports after a restart.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS assignment_ledger (
	target_id TEXT PRIMARY KEY,
	assigned  INTEGER NOT NULL CHECK (assigned > 0)
);

CREATE TABLE IF NOT EXISTS reassignment_queue (
	position       INTEGER PRIMARY KEY,
	interceptor_id TEXT NOT NULL,
	queued_tick    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoint (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	tick INTEGER NOT NULL
);
`

// Open opens a coordinator SQLite store and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveState replaces the persisted coordinator state in one transaction. The
// saved snapshot is either fully applied or not at all.
func (s *Store) SaveState(ctx context.Context, tick int64, ledger map[model.TargetID]int, queue []controller.QueuedReassignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignment_ledger`); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	for target, assigned := range ledger {
		if assigned <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO assignment_ledger (target_id, assigned) VALUES (?, ?)
`, string(target), assigned); err != nil {
			return fmt.Errorf("save ledger entry %s: %w", target, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reassignment_queue`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	for pos, entry := range queue {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO reassignment_queue (position, interceptor_id, queued_tick) VALUES (?, ?, ?)
`, pos, string(entry.Interceptor), entry.QueuedTick); err != nil {
			return fmt.Errorf("save queue entry %s: %w", entry.Interceptor, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO checkpoint (id, tick) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET tick = excluded.tick
`, tick); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadState reads the persisted coordinator state. A fresh database loads as
// tick zero with an empty ledger and queue.
func (s *Store) LoadState(ctx context.Context) (int64, map[model.TargetID]int, []controller.QueuedReassignment, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, nil, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, nil, nil, fmt.Errorf("storage is not configured")
	}

	var tick int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT tick FROM checkpoint WHERE id = 1`).Scan(&tick)
	if err != nil && err != sql.ErrNoRows {
		return 0, nil, nil, fmt.Errorf("load checkpoint: %w", err)
	}

	ledger := make(map[model.TargetID]int)
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT target_id, assigned FROM assignment_ledger`)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var target string
		var assigned int
		if err := rows.Scan(&target, &assigned); err != nil {
			return 0, nil, nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		ledger[model.TargetID(target)] = assigned
	}
	if err := rows.Err(); err != nil {
		return 0, nil, nil, fmt.Errorf("iterate ledger: %w", err)
	}

	var queue []controller.QueuedReassignment
	qrows, err := s.sqlDB.QueryContext(ctx, `
SELECT interceptor_id, queued_tick FROM reassignment_queue ORDER BY position
`)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("load queue: %w", err)
	}
	defer qrows.Close()
	for qrows.Next() {
		var entry controller.QueuedReassignment
		var id string
		if err := qrows.Scan(&id, &entry.QueuedTick); err != nil {
			return 0, nil, nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entry.Interceptor = model.InterceptorID(id)
		queue = append(queue, entry)
	}
	if err := qrows.Err(); err != nil {
		return 0, nil, nil, fmt.Errorf("iterate queue: %w", err)
	}

	return tick, ledger, queue, nil
}
