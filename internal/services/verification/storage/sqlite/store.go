// Package sqlite persists verification attempts in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/ssi-verifier-mcp/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification"
	"github.com/louisbranch/ssi-verifier-mcp/internal/services/verification/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed verification attempt persistence.
//
// Attempts left pending by a previous process cannot be resumed, so Open
// finalizes them as errors.
type Store struct {
	sqlDB       *sql.DB
	interrupted int
}

var _ verification.Store = (*Store)(nil)

// Open opens a verification SQLite store and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	interrupted, err := store.finalizePending(ctx, time.Now().UTC())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	store.interrupted = interrupted
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Interrupted reports how many pending attempts Open finalized.
func (s *Store) Interrupted() int {
	return s.interrupted
}

func (s *Store) finalizePending(ctx context.Context, now time.Time) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE verification_attempts
SET status = 'error', result = '', data = NULL, error = ?, updated_at = ?
WHERE status = 'pending'
`, verification.ErrorMessageInterrupted, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("finalize pending attempts: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("finalize pending attempts: %w", err)
	}
	return int(count), nil
}

// Put inserts or replaces a pending attempt. Terminal rows are left as they
// are and verification.ErrTerminal is returned.
func (s *Store) Put(ctx context.Context, attempt verification.Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(attempt.State) == "" {
		return fmt.Errorf("attempt state is required")
	}

	data, err := encodeData(attempt.Data)
	if err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO verification_attempts (
	state,
	endpoint,
	status,
	result,
	data,
	error,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(state) DO UPDATE SET
	endpoint = excluded.endpoint,
	status = excluded.status,
	result = excluded.result,
	data = excluded.data,
	error = excluded.error,
	updated_at = excluded.updated_at
WHERE verification_attempts.status = 'pending'
`,
		attempt.State,
		attempt.Endpoint,
		string(attempt.Status),
		attempt.Result,
		data,
		attempt.Error,
		attempt.CreatedAt.UTC().UnixMilli(),
		attempt.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put attempt: %w", err)
	}
	if affected == 0 {
		return verification.ErrTerminal
	}
	return nil
}

// Get loads one attempt.
func (s *Store) Get(ctx context.Context, state string) (verification.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return verification.Attempt{}, err
	}
	if s == nil || s.sqlDB == nil {
		return verification.Attempt{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT state, endpoint, status, result, data, error, created_at, updated_at
FROM verification_attempts
WHERE state = ?
`, state)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return verification.Attempt{}, verification.ErrNotFound
	}
	if err != nil {
		return verification.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// Delete removes one attempt. Missing attempts are ignored.
func (s *Store) Delete(ctx context.Context, state string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM verification_attempts WHERE state = ?`, state); err != nil {
		return fmt.Errorf("delete attempt: %w", err)
	}
	return nil
}

// Range visits attempts oldest-first until fn returns false.
func (s *Store) Range(ctx context.Context, fn func(verification.Attempt) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT state, endpoint, status, result, data, error, created_at, updated_at
FROM verification_attempts
ORDER BY created_at ASC, state ASC
`)
	if err != nil {
		return fmt.Errorf("range attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return fmt.Errorf("scan attempt: %w", err)
		}
		if !fn(attempt) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attempts: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (verification.Attempt, error) {
	var (
		attempt   verification.Attempt
		status    string
		data      sql.NullString
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&attempt.State,
		&attempt.Endpoint,
		&status,
		&attempt.Result,
		&data,
		&attempt.Error,
		&createdAt,
		&updatedAt,
	); err != nil {
		return verification.Attempt{}, err
	}
	attempt.Status = verification.Status(status)
	attempt.CreatedAt = time.UnixMilli(createdAt).UTC()
	attempt.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if data.Valid {
		if err := json.Unmarshal([]byte(data.String), &attempt.Data); err != nil {
			return verification.Attempt{}, fmt.Errorf("decode attempt data: %w", err)
		}
	}
	return attempt, nil
}

func encodeData(data any) (sql.NullString, error) {
	if data == nil {
		return sql.NullString{}, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode attempt data: %w", err)
	}
	return sql.NullString{String: string(payload), Valid: true}, nil
}
