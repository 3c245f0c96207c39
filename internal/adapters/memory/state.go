// Package memory holds process-local stand-ins for the Redis adapters, used
// when REDIS_ADDR is not set.
package memory

import (
	"context"
	"sync"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

type StateStore struct {
	mu     sync.Mutex
	states map[int64]domain.ConversationState
}

func NewStateStore() *StateStore {
	return &StateStore{states: make(map[int64]domain.ConversationState)}
}

func (s *StateStore) Get(_ context.Context, userID int64) (domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID], nil
}

func (s *StateStore) Set(_ context.Context, userID int64, st domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Idle() {
		delete(s.states, userID)
		return nil
	}
	s.states[userID] = st
	return nil
}

func (s *StateStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func (s *StateStore) Take(_ context.Context, userID int64) (domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[userID]
	delete(s.states, userID)
	return st, nil
}
