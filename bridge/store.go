package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sthembisoo/reportit/report"

	_ "modernc.org/sqlite"
)

// ErrReportNotFound is returned by StoreBridge.Get for unknown ids
var ErrReportNotFound = errors.New("report not found")

// StoreBridge persists reports to SQLite so they can be listed later
type StoreBridge struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// StoreConfig configures the report store
type StoreConfig struct {
	Path string // Path to SQLite database file
}

// ReportQuery filters stored reports. Zero fields match everything.
type ReportQuery struct {
	Scope  string
	Type   string
	Thread string
	Limit  int
}

// NewStoreBridge opens (or creates) the report store
func NewStoreBridge(cfg StoreConfig) (*StoreBridge, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &StoreBridge{
		db:   db,
		path: cfg.Path,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the schema
func (s *StoreBridge) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			id                TEXT PRIMARY KEY,
			timestamp         TEXT NOT NULL,
			exception_type    TEXT NOT NULL,
			exception_message TEXT NOT NULL,
			thread_name       TEXT NOT NULL,
			thread_id         INTEGER NOT NULL,
			is_main_thread    BOOLEAN NOT NULL,
			scope             TEXT,
			payload           TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON reports(timestamp);
		CREATE INDEX IF NOT EXISTS idx_reports_type ON reports(exception_type);
		CREATE INDEX IF NOT EXISTS idx_reports_scope ON reports(scope);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Name implements Bridge
func (s *StoreBridge) Name() string { return "sqlite" }

// Path returns the database path
func (s *StoreBridge) Path() string { return s.path }

// Send implements Bridge
func (s *StoreBridge) Send(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(r)
	if err != nil {
		return &DeliveryError{Bridge: s.Name(), Err: fmt.Errorf("failed to serialize report: %w", err)}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, timestamp, exception_type, exception_message,
			thread_name, thread_id, is_main_thread, scope, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Timestamp,
		r.ExceptionType,
		r.ExceptionMessage,
		r.ThreadInfo.Name,
		r.ThreadInfo.ID,
		r.ThreadInfo.IsMain,
		r.Scope,
		string(payload),
	)
	if err != nil {
		return &DeliveryError{Bridge: s.Name(), Err: fmt.Errorf("failed to insert report: %w", err)}
	}

	return nil
}

// Query returns stored reports matching q, newest first
func (s *StoreBridge) Query(ctx context.Context, q ReportQuery) ([]*report.Report, error) {
	var (
		conds []string
		args  []any
	)

	if q.Scope != "" {
		conds = append(conds, "scope = ?")
		args = append(args, q.Scope)
	}
	if q.Type != "" {
		conds = append(conds, "exception_type = ?")
		args = append(args, q.Type)
	}
	if q.Thread != "" {
		conds = append(conds, "thread_name = ?")
		args = append(args, q.Thread)
	}

	query := "SELECT payload FROM reports"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		var r report.Report
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		out = append(out, &r)
	}

	return out, rows.Err()
}

// Get returns a single stored report
func (s *StoreBridge) Get(ctx context.Context, id string) (*report.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM reports WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var r report.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// Count returns the number of stored reports
func (s *StoreBridge) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *StoreBridge) Close() error {
	return s.db.Close()
}
