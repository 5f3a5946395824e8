package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps the ledger in memory for unit tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]*Entry // keyed by election, append order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID][]*Entry)}
}

func (s *MemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.entries[entry.ElectionID]
	entry.PrevHash = ""
	if len(chain) > 0 {
		entry.PrevHash = chain[len(chain)-1].EntryHash
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.EntryHash = entry.ComputeHash()

	cp := *entry
	s.entries[entry.ElectionID] = append(chain, &cp)
	return nil
}

func (s *MemoryStore) ListByElection(_ context.Context, electionID uuid.UUID, filter Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries[electionID] {
		if !matches(e, filter) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func matches(e *Entry, f Filter) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
