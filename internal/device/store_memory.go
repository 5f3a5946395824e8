package device

import (
	"context"
	"sync"

	"agora/pkg/platform/sentinel"
)

// MemoryStore backs tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	byVoter  map[string]Binding
	byPrint  map[string]string // fingerprint -> voter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byVoter: make(map[string]Binding),
		byPrint: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(_ context.Context, b Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byVoter[b.VoterID]; ok {
		return sentinel.ErrAlreadyBound
	}
	if owner, ok := s.byPrint[b.Fingerprint]; ok && owner != b.VoterID {
		return sentinel.ErrFingerprintTaken
	}
	s.byVoter[b.VoterID] = b
	s.byPrint[b.Fingerprint] = b.VoterID
	return nil
}

func (s *MemoryStore) GetByVoter(_ context.Context, voterID string) (Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byVoter[voterID]
	if !ok {
		return Binding{}, sentinel.ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) Delete(_ context.Context, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byVoter[voterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byVoter, voterID)
	delete(s.byPrint, b.Fingerprint)
	return nil
}
