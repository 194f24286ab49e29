package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLSessionStore keeps sessions in the auth_sessions table.
type SQLSessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLSessionStore creates a session store over db. Call EnsureSchema
// before use.
func NewSQLSessionStore(db *sql.DB) *SQLSessionStore {
	return &SQLSessionStore{db: db, now: time.Now}
}

// EnsureSchema creates the sessions table when missing.
func (s *SQLSessionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS auth_sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			metadata   TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires ON auth_sessions(expires_at);`)
	if err != nil {
		return fmt.Errorf("creating auth_sessions table: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) Store(ctx context.Context, session *Session) error {
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("encoding session metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, created_at, expires_at, ip_address, user_agent, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at, metadata = excluded.metadata`,
		session.ID, session.UserID, session.CreatedAt.UnixMilli(), session.ExpiresAt.UnixMilli(),
		session.IPAddress, session.UserAgent, string(metadata))
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	var created, expires int64
	var metadata string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, expires_at, ip_address, user_agent, metadata
		FROM auth_sessions WHERE id = ?`, sessionID).
		Scan(&session.ID, &session.UserID, &created, &expires, &session.IPAddress, &session.UserAgent, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	session.CreatedAt = time.UnixMilli(created)
	session.ExpiresAt = time.UnixMilli(expires)
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &session.Metadata); err != nil {
			return nil, fmt.Errorf("decoding session metadata: %w", err)
		}
	}
	return &session, nil
}

func (s *SQLSessionStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) Cleanup(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("removing expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("removing expired sessions: %w", err)
	}
	return int(n), nil
}

func (s *SQLSessionStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions`)
	if err != nil {
		return 0, fmt.Errorf("removing sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("removing sessions: %w", err)
	}
	return int(n), nil
}
