package auth

import "errors"

// Auth module specific errors
var (
	ErrInvalidConfig           = errors.New("invalid auth configuration")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrTokenExpired            = errors.New("token has expired")
	ErrTokenInvalid            = errors.New("token is invalid")
	ErrTokenMalformed          = errors.New("token is malformed")
	ErrPasswordTooWeak         = errors.New("password does not meet requirements")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionExpired          = errors.New("session has expired")
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
	ErrDatabaseUnavailable     = errors.New("database session store requires the database module")
)
