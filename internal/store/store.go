// Package store keeps a local history of audit runs in SQLite, so operators
// can see when the fleet was last swept and what each sweep found without
// digging through old report artifacts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// RunRecord summarizes one completed audit run.
type RunRecord struct {
	ID             string `json:"id"`
	OrgID          string `json:"org_id"`
	OrgName        string `json:"org_name"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at"`
	NetworksTotal  int    `json:"networks_total"`
	NetworksFailed int    `json:"networks_failed"`
	BadClients     int    `json:"bad_clients"`
	Blocked        int    `json:"blocked"`
	ReportPath     string `json:"report_path"`
}

// AuditStore persists run history, backed by SQLite via modernc.org/sqlite.
type AuditStore struct {
	db *sql.DB
}

// New opens (or creates) the run-history database at the given path and
// applies recommended pragmas for WAL mode and durability.
func New(path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection. WAL enables concurrent readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// Apply recommended pragmas (modernc.org/sqlite requires SQL statements, not DSN params).
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &AuditStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

func (s *AuditStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_runs (
			id              TEXT PRIMARY KEY,
			org_id          TEXT NOT NULL,
			org_name        TEXT NOT NULL,
			started_at      TEXT NOT NULL,
			finished_at     TEXT NOT NULL,
			networks_total  INTEGER NOT NULL,
			networks_failed INTEGER NOT NULL,
			bad_clients     INTEGER NOT NULL,
			blocked         INTEGER NOT NULL,
			report_path     TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate audit_runs: %w", err)
	}
	return nil
}

// InsertRun records one completed run. If run.ID is empty, a UUID is
// generated.
func (s *AuditStore) InsertRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.FinishedAt == "" {
		run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_runs (
			id, org_id, org_name, started_at, finished_at,
			networks_total, networks_failed, bad_clients, blocked, report_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.OrgID, run.OrgName, run.StartedAt, run.FinishedAt,
		run.NetworksTotal, run.NetworksFailed, run.BadClients, run.Blocked, run.ReportPath,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *AuditStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, org_name, started_at, finished_at,
			networks_total, networks_failed, bad_clients, blocked, report_path
		FROM audit_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.OrgID, &r.OrgName, &r.StartedAt, &r.FinishedAt,
			&r.NetworksTotal, &r.NetworksFailed, &r.BadClients, &r.Blocked, &r.ReportPath); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if runs == nil {
		runs = []RunRecord{}
	}
	return runs, nil
}
