package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore implements SessionStore in process memory.
type MemorySessionStore struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	now      func() time.Time
}

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Store(ctx context.Context, session *Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessionStore) Cleanup(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemorySessionStore) DeleteAll(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	return n, nil
}
