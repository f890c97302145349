// Package memory provides an in-process session store. Sessions are
// short-lived negotiation state, so the authoritative copy lives in memory
// and only completed games are written through to durable storage.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/splitpoint/ultimatum/internal/game/domain"
	"github.com/splitpoint/ultimatum/internal/storage"
)

// SessionStore keeps sessions in a mutex-guarded map. Values are cloned on
// the way in and out so callers never share ledger slices with the store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewSessionStore returns an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

// CreateSession stores a new session. It fails if the ID is already taken.
func (s *SessionStore) CreateSession(_ context.Context, session domain.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// GetSession returns a copy of the stored session.
func (s *SessionStore) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session.Clone(), nil
}

// UpdateSession replaces an existing session.
func (s *SessionStore) UpdateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return storage.ErrNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// DeleteSession removes a session. Deleting a missing session is an error.
func (s *SessionStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

var _ storage.SessionStore = (*SessionStore)(nil)
