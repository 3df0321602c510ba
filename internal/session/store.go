package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/repairlens/repairlens/internal/domain"
)

// Store is the in-memory session registry. Sessions live only as long as
// the process; nothing is persisted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Machine

	gw     domain.Gateway
	logger *slog.Logger
}

// NewStore creates a store issuing machines over the given gateway.
func NewStore(gw domain.Gateway, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Machine),
		gw:       gw,
		logger:   logger,
	}
}

// Create starts a new session and returns its ID.
func (s *Store) Create() (string, *Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "sess_" + uuid.NewString()
	m := NewMachine(s.gw, s.logger.With(slog.String("session_id", id)))
	s.sessions[id] = m
	return id, m
}

// Get returns the session by ID.
func (s *Store) Get(id string) (*Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return m, nil
}

// Delete ends a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %s not found", id)
	}
	delete(s.sessions, id)
	return nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
