// Package session persists the authenticated session in a local SQLite file.
// The store holds at most one row: it is written once at bootstrap, read by
// every protected command, and cleared on logout. An absent or unreadable row
// always reads as unauthenticated rather than an error the caller must guess
// about.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kriya-app/kriya-cli/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    email TEXT NOT NULL,
    has_local_password INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
`

// Store persists the session record.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the session store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("session store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping session store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure session table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes the session record, replacing any previous one. A failed write
// is returned to the caller; bootstrap must never report success without a
// persisted session.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	if sess.Email == "" {
		return fmt.Errorf("session email is required")
	}
	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO session (id, email, has_local_password, created_at)
VALUES (1, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = excluded.email,
    has_local_password = excluded.has_local_password,
    created_at = excluded.created_at`,
		sess.Email, boolToInt(sess.HasLocalPassword), createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the persisted session. A missing row yields
// domain.ErrNotAuthenticated; a row that cannot be read yields
// domain.ErrSessionCorrupt. Both mean "treat as signed out".
func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	var (
		email     string
		hasLocal  int64
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, has_local_password, created_at FROM session WHERE id = 1`,
	).Scan(&email, &hasLocal, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrSessionCorrupt, err)
	}
	if email == "" {
		return domain.Session{}, domain.ErrSessionCorrupt
	}
	return domain.Session{
		Email:            email,
		HasLocalPassword: hasLocal != 0,
		Authenticated:    true,
		CreatedAt:        time.UnixMilli(createdAt).UTC(),
	}, nil
}

// SetHasLocalPassword flips the has-local-password flag. This is the only
// mutation allowed after bootstrap; the password-upgrade flow calls it once
// the reset-password operation succeeds.
func (s *Store) SetHasLocalPassword(ctx context.Context, v bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE session SET has_local_password = ? WHERE id = 1`, boolToInt(v))
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return domain.ErrNotAuthenticated
	}
	return nil
}

// Clear removes the session record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
