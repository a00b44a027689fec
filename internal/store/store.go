// Package store archives finished proctoring sessions in a local SQLite
// database so instructors can query attempts and their violation trails
// after the fact. The audit JSONL log remains the tamper-evident record;
// the archive is the queryable one.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

// ErrNotFound is returned when a session ID is not in the archive.
var ErrNotFound = errors.New("store: session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	started_at       TEXT NOT NULL,
	ended_at         TEXT,
	duration_minutes INTEGER NOT NULL,
	outcome          TEXT NOT NULL DEFAULT 'open',
	cause            TEXT NOT NULL DEFAULT '',
	strikes          INTEGER NOT NULL DEFAULT 0,
	policy_hash      TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS violations (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	kind       TEXT NOT NULL,
	class      TEXT NOT NULL,
	ts         TEXT NOT NULL,
	occurrence INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_violations_session ON violations(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_outcome ON sessions(outcome);
`

// SessionRecord is one archived attempt.
type SessionRecord struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Outcome         string     `json:"outcome"`
	Cause           string     `json:"cause,omitempty"`
	Strikes         int        `json:"strikes"`
	PolicyHash      string     `json:"policy_hash,omitempty"`
}

// Store is a SQLite-backed session archive.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive database and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession records a newly started attempt.
func (s *Store) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, duration_minutes, outcome, cause, strikes, policy_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.DurationMinutes,
		orOpen(rec.Outcome), rec.Cause, rec.Strikes, rec.PolicyHash,
	)
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// FinishSession records the terminal outcome and archives the violation
// trail in one transaction.
func (s *Store) FinishSession(ctx context.Context, id, outcome, cause string, endedAt time.Time, strikes int, trail []violation.Violation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, outcome = ?, cause = ?, strikes = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano), outcome, cause, strikes, id,
	)
	if err != nil {
		return fmt.Errorf("store: finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for _, v := range trail {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO violations (session_id, kind, class, ts, occurrence) VALUES (?, ?, ?, ?, ?)`,
			id, string(v.Kind), string(v.Kind.Class()),
			v.Timestamp.UTC().Format(time.RFC3339Nano), v.OccurrenceIndex,
		)
		if err != nil {
			return fmt.Errorf("store: archive violation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// GetSession fetches one archived attempt.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, duration_minutes, outcome, cause, strikes, policy_hash
		 FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	return rec, err
}

// ListSessions returns the most recent attempts, newest first. An empty
// outcome matches every outcome.
func (s *Store) ListSessions(ctx context.Context, outcome string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, started_at, ended_at, duration_minutes, outcome, cause, strikes, policy_hash
	          FROM sessions`
	args := []any{}
	if outcome != "" {
		query += ` WHERE outcome = ?`
		args = append(args, outcome)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Trail returns the archived violation trail of a session, in append order.
func (s *Store) Trail(ctx context.Context, id string) ([]violation.Violation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, ts, occurrence FROM violations WHERE session_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("store: query trail: %w", err)
	}
	defer rows.Close()

	var out []violation.Violation
	for rows.Next() {
		var kind, ts string
		var occ int
		if err := rows.Scan(&kind, &ts, &occ); err != nil {
			return nil, fmt.Errorf("store: scan violation: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("store: parse timestamp: %w", err)
		}
		out = append(out, violation.Violation{
			Kind:            violation.Kind(kind),
			Timestamp:       t,
			OccurrenceIndex: occ,
		})
	}
	return out, rows.Err()
}

// CountByKind aggregates archived violations across all sessions.
func (s *Store) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM violations GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("store: count by kind: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("store: scan count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var rec SessionRecord
	var started string
	var ended sql.NullString
	if err := row.Scan(&rec.ID, &started, &ended, &rec.DurationMinutes,
		&rec.Outcome, &rec.Cause, &rec.Strikes, &rec.PolicyHash); err != nil {
		return SessionRecord{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("store: parse started_at: %w", err)
	}
	rec.StartedAt = t
	if ended.Valid && ended.String != "" {
		e, err := time.Parse(time.RFC3339Nano, ended.String)
		if err != nil {
			return SessionRecord{}, fmt.Errorf("store: parse ended_at: %w", err)
		}
		rec.EndedAt = &e
	}
	return rec, nil
}

func orOpen(outcome string) string {
	if outcome == "" {
		return "open"
	}
	return outcome
}
