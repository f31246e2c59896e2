// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eyecantell/cmdorc/pkg/orchestrator"
)

// SQLiteStore provides sqlite-backed storage for finalized runs.
type SQLiteStore struct {
	db *sql.DB
}

// Config contains sqlite storage configuration.
type Config struct {
	// Path is the filesystem path to the sqlite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// NewSQLiteStore opens (and migrates) a sqlite run store.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// WAL mode lets readers proceed while runs are being written.
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		command_name TEXT NOT NULL,
		trigger_event TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		command TEXT NOT NULL DEFAULT '',
		dir TEXT NOT NULL DEFAULT '',
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command_name, end_time DESC);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// SaveRun implements orchestrator.RunStore. Saving the same run twice
// replaces the earlier row, so retried finalization hooks stay idempotent.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *orchestrator.RunResult) error {
	rec := recordFromResult(r)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
			(run_id, command_name, trigger_event, state, output, error, comment,
			 command, dir, start_time, end_time, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.CommandName, rec.TriggerEvent, rec.State, rec.Output,
		rec.Error, rec.Comment, rec.Command, rec.Dir,
		rec.StartTime.UnixMilli(), rec.EndTime.UnixMilli(), rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}
	return nil
}

// Runs returns stored records, newest first. Empty command matches all;
// limit <= 0 returns everything.
func (s *SQLiteStore) Runs(ctx context.Context, command string, limit int) ([]Record, error) {
	query := `SELECT run_id, command_name, trigger_event, state, output, error,
		comment, command, dir, start_time, end_time, duration_ms FROM runs`
	var args []any
	if command != "" {
		query += " WHERE command_name = ?"
		args = append(args, command)
	}
	query += " ORDER BY end_time DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var startMs, endMs int64
		if err := rows.Scan(&rec.RunID, &rec.CommandName, &rec.TriggerEvent,
			&rec.State, &rec.Output, &rec.Error, &rec.Comment, &rec.Command,
			&rec.Dir, &startMs, &endMs, &rec.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartTime = time.UnixMilli(startMs)
		rec.EndTime = time.UnixMilli(endMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Interface check: SQLiteStore plugs into the executor's storage hook.
var _ orchestrator.RunStore = (*SQLiteStore)(nil)
