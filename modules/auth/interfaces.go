package auth

import (
	"context"
	"time"
)

// SessionStore defines the interface for session storage operations
type SessionStore interface {
	Store(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	// Cleanup removes expired sessions and returns how many were removed
	Cleanup(ctx context.Context) (int, error)
	// DeleteAll removes every session and returns how many were removed
	DeleteAll(ctx context.Context) (int, error)
}

// TokenPair is the response of a token grant.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Claims are the validated contents of an access token.
type Claims struct {
	UserID    string         `json:"user_id"`
	IssuedAt  time.Time      `json:"iat"`
	ExpiresAt time.Time      `json:"exp"`
	Issuer    string         `json:"iss"`
	Custom    map[string]any `json:"custom,omitempty"`
}

// Session is a server-side login session.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
