package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Service implements password hashing, server-side sessions and API tokens.
type Service struct {
	config       *Config
	sessionStore SessionStore
	eventEmitter EventEmitter
	tokenCounter int64
	now          func() time.Time
}

// NewService creates a new authentication service
func NewService(config *Config, sessionStore SessionStore) *Service {
	if sessionStore == nil {
		sessionStore = NewMemorySessionStore()
	}
	return &Service{
		config:       config,
		sessionStore: sessionStore,
		now:          time.Now,
	}
}

// SetEventEmitter sets the event emitter for this service
func (s *Service) SetEventEmitter(emitter EventEmitter) {
	s.eventEmitter = emitter
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *Config {
	return s.config
}

// SessionStore returns the store sessions are kept in.
func (s *Service) SessionStore() SessionStore {
	return s.sessionStore
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Password.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword returns ErrInvalidCredentials when password does not match
func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// ValidatePasswordStrength validates password against configured requirements
func (s *Service) ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < s.config.Password.MinLength {
		return fmt.Errorf("%w: at least %d characters", ErrPasswordTooWeak, s.config.Password.MinLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	switch {
	case s.config.Password.RequireUpper && !hasUpper:
		return fmt.Errorf("%w: needs an uppercase letter", ErrPasswordTooWeak)
	case s.config.Password.RequireLower && !hasLower:
		return fmt.Errorf("%w: needs a lowercase letter", ErrPasswordTooWeak)
	case s.config.Password.RequireDigit && !hasDigit:
		return fmt.Errorf("%w: needs a digit", ErrPasswordTooWeak)
	case s.config.Password.RequireSpecial && !hasSpecial:
		return fmt.Errorf("%w: needs a special character", ErrPasswordTooWeak)
	}
	return nil
}

// CreateSession stores a new session for userID. metadata is kept with the
// session and may be nil.
func (s *Service) CreateSession(ctx context.Context, userID string, r *http.Request, metadata map[string]any) (*Session, error) {
	sessionID, err := generateRandomID(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.Session.MaxAge),
		Metadata:  metadata,
	}
	if r != nil {
		session.IPAddress = r.RemoteAddr
		session.UserAgent = r.UserAgent()
	}

	if err := s.sessionStore.Store(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.emitEvent(ctx, EventTypeSessionCreated, map[string]any{
		"user_id":    userID,
		"expires_at": session.ExpiresAt,
	})
	return session, nil
}

// GetSession returns a live session. Expired sessions are deleted and
// reported as ErrSessionExpired.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		_ = s.sessionStore.Delete(ctx, sessionID)
		s.emitEvent(ctx, EventTypeSessionExpired, map[string]any{"user_id": session.UserID})
		return nil, ErrSessionExpired
	}
	return session, nil
}

// DeleteSession removes a session. Unknown sessions are not an error.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.sessionStore.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.sessionStore.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.emitEvent(ctx, EventTypeSessionDestroyed, map[string]any{"user_id": session.UserID})
	return nil
}

// RefreshSession extends a live session by the configured max age
func (s *Service) RefreshSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = s.now().Add(s.config.Session.MaxAge)
	if err := s.sessionStore.Store(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return session, nil
}

// CleanupSessions removes expired sessions from the store
func (s *Service) CleanupSessions(ctx context.Context) (int, error) {
	n, err := s.sessionStore.Cleanup(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	return n, nil
}

// RevokeAllSessions removes every stored session.
func (s *Service) RevokeAllSessions(ctx context.Context) (int, error) {
	n, err := s.sessionStore.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoking sessions: %w", err)
	}
	s.emitEvent(ctx, EventTypeSessionsRevoked, map[string]any{"count": n})
	return n, nil
}

func (s *Service) signToken(userID, tokenType string, ttl time.Duration, custom map[string]any) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":     userID,
		"type":    tokenType,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
		"counter": atomic.AddInt64(&s.tokenCounter, 1),
	}
	if s.config.JWT.Issuer != "" {
		claims["iss"] = s.config.JWT.Issuer
	}
	for key, value := range custom {
		if _, reserved := claims[key]; !reserved {
			claims[key] = value
		}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, expiresAt, nil
}

// GenerateToken issues an access and a refresh token for userID
func (s *Service) GenerateToken(ctx context.Context, userID string, custom map[string]any) (*TokenPair, error) {
	access, expiresAt, err := s.signToken(userID, "access", s.config.JWT.Expiration, custom)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.signToken(userID, "refresh", s.config.JWT.RefreshExpiration, custom)
	if err != nil {
		return nil, err
	}

	s.emitEvent(ctx, EventTypeTokenGenerated, map[string]any{
		"user_id":    userID,
		"expires_at": expiresAt,
	})
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.JWT.Expiration.Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) parse(tokenString, wantType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, token.Header["alg"])
		}
		return []byte(s.config.JWT.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrTokenMalformed
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if tokenType, _ := claims["type"].(string); tokenType != wantType {
		return nil, ErrTokenInvalid
	}
	if s.config.JWT.Issuer != "" {
		if iss, _ := claims["iss"].(string); iss != s.config.JWT.Issuer {
			return nil, ErrTokenInvalid
		}
	}
	return claims, nil
}

// ValidateToken validates an access token and returns its claims
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, "access")
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			s.emitEvent(ctx, EventTypeTokenExpired, nil)
		}
		return nil, err
	}
	return claimsOf(claims), nil
}

func claimsOf(claims jwt.MapClaims) *Claims {
	sub, _ := claims.GetSubject()
	iss, _ := claims.GetIssuer()
	result := &Claims{UserID: sub, Issuer: iss, Custom: map[string]any{}}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		result.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}

	standard := map[string]bool{"sub": true, "iss": true, "iat": true, "exp": true, "type": true, "counter": true}
	for k, v := range claims {
		if !standard[k] {
			result.Custom[k] = v
		}
	}
	return result
}

// RefreshToken exchanges a refresh token for a new token pair with the
// given custom claims.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string, custom map[string]any) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, "refresh")
	if err != nil {
		return nil, err
	}
	sub, _ := claims.GetSubject()
	pair, err := s.GenerateToken(ctx, sub, custom)
	if err != nil {
		return nil, err
	}
	s.emitEvent(ctx, EventTypeTokenRefreshed, map[string]any{"user_id": sub})
	return pair, nil
}

// RefreshClaims validates a refresh token and returns its claims.
func (s *Service) RefreshClaims(refreshToken string) (*Claims, error) {
	claims, err := s.parse(refreshToken, "refresh")
	if err != nil {
		return nil, err
	}
	return claimsOf(claims), nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// SetSessionCookie writes the session cookie for session.
func (s *Service) SetSessionCookie(w http.ResponseWriter, session *Session) {
	cfg := s.config.Session
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    session.ID,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Expires:  session.ExpiresAt,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.sameSite(),
	})
}

// ClearSessionCookie expires the session cookie.
func (s *Service) ClearSessionCookie(w http.ResponseWriter) {
	cfg := s.config.Session
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.sameSite(),
	})
}

// SessionID returns the session cookie value of r, if any.
func (s *Service) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.config.Session.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func generateRandomID(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateSecret returns a random hex secret suitable for JWT signing.
func GenerateSecret() (string, error) {
	return generateRandomID(32)
}
