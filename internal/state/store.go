// Package state persists build history in SQLite. Recording is best-effort:
// callers log store failures and keep building.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// RuleOutcome is one rule's result within a build run.
type RuleOutcome struct {
	Rule     string
	Ran      bool
	Reason   string
	Error    string
	Duration time.Duration
}

// BuildRecord is one build run.
type BuildRecord struct {
	ID       string
	Target   string
	Started  time.Time
	Finished time.Time
	Status   string // "ok" or "failed"
	Rules    []RuleOutcome
}

// Store is a SQLite-backed build-history store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the history database at dbPath.
// Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		status TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS build_rules (
		build_id TEXT NOT NULL REFERENCES builds(id),
		rule TEXT NOT NULL,
		ran INTEGER NOT NULL,
		reason TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started);
	CREATE INDEX IF NOT EXISTS idx_build_rules_build ON build_rules(build_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordBuild stores one build run with its rule outcomes.
func (s *Store) RecordBuild(ctx context.Context, rec BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO builds (id, target, started, finished, status) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Target, rec.Started.UnixMilli(), rec.Finished.UnixMilli(), rec.Status,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}

	for _, r := range rec.Rules {
		ran := 0
		if r.Ran {
			ran = 1
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO build_rules (build_id, rule, ran, reason, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?)",
			rec.ID, r.Rule, ran, r.Reason, r.Error, r.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert rule outcome: %w", err)
		}
	}

	return tx.Commit()
}

// RecentBuilds returns up to limit builds, newest first, with rule outcomes.
func (s *Store) RecentBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, target, started, finished, status FROM builds ORDER BY started DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Target, &started, &finished, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		rec.Started = time.UnixMilli(started)
		rec.Finished = time.UnixMilli(finished)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}

	for i := range records {
		if records[i].Rules, err = s.ruleOutcomes(ctx, records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) ruleOutcomes(ctx context.Context, buildID string) ([]RuleOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT rule, ran, reason, error, duration_ms FROM build_rules WHERE build_id = ? ORDER BY rowid",
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query rule outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []RuleOutcome
	for rows.Next() {
		var o RuleOutcome
		var ran int
		var durationMS int64
		if err := rows.Scan(&o.Rule, &ran, &o.Reason, &o.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan rule outcome: %w", err)
		}
		o.Ran = ran == 1
		o.Duration = time.Duration(durationMS) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
