package election

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agora/pkg/platform/sentinel"
)

// VoteChecker lets the store enforce referential protection without owning
// vote rows. The ballot store satisfies it.
type VoteChecker interface {
	ElectionHasVotes(ctx context.Context, electionID uuid.UUID) (bool, error)
}

// MemoryStore is the in-memory implementation used by unit tests and local
// runs. It favors clarity over performance.
type MemoryStore struct {
	mu         sync.RWMutex
	elections  map[uuid.UUID]*Election
	positions  map[uuid.UUID]*Position
	candidates map[uuid.UUID]*Candidate
	votes      VoteChecker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		elections:  make(map[uuid.UUID]*Election),
		positions:  make(map[uuid.UUID]*Position),
		candidates: make(map[uuid.UUID]*Candidate),
	}
}

// SetVoteChecker wires the referential protection for DeleteElection.
func (s *MemoryStore) SetVoteChecker(v VoteChecker) { s.votes = v }

func (s *MemoryStore) CreateElection(_ context.Context, e *Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	cp := *e
	s.elections[e.ID] = &cp
	return nil
}

func (s *MemoryStore) GetElection(_ context.Context, id uuid.UUID) (*Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) UpdateElection(_ context.Context, e *Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	e.UpdatedAt = time.Now()
	cp := *e
	s.elections[e.ID] = &cp
	return nil
}

func (s *MemoryStore) ListElections(_ context.Context) ([]*Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Election, 0, len(s.elections))
	for _, e := range s.elections {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListAutoManaged(_ context.Context) ([]*Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Election
	for _, e := range s.elections {
		switch e.Status {
		case StatusPending, StatusActive:
		case StatusCompleted:
			if e.ResultsPublished || !e.AutoPublish {
				continue
			}
		default:
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) UpdateSerialized(_ context.Context, id uuid.UUID, fn func(e *Election) error) error {
	// The store-wide mutex is the serialization point; good enough for the
	// in-memory implementation.
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *e
	if err := fn(&cp); err != nil {
		return err
	}
	cp.UpdatedAt = time.Now()
	s.elections[id] = &cp
	return nil
}

func (s *MemoryStore) DeleteElection(ctx context.Context, id uuid.UUID) error {
	if s.votes != nil {
		has, err := s.votes.ElectionHasVotes(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return sentinel.ErrInvalidState
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.elections, id)
	for pid, p := range s.positions {
		if p.ElectionID == id {
			delete(s.positions, pid)
		}
	}
	for cid, c := range s.candidates {
		if c.ElectionID == id {
			delete(s.candidates, cid)
		}
	}
	return nil
}

func (s *MemoryStore) CreatePosition(_ context.Context, p *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[p.ElectionID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.positions {
		if existing.ElectionID == p.ElectionID &&
			(existing.Order == p.Order || existing.Name == p.Name) {
			return sentinel.ErrInvalidState
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context, electionID uuid.UUID) ([]*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Position
	for _, p := range s.positions {
		if p.ElectionID == electionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *MemoryStore) CreateCandidate(_ context.Context, c *Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[c.PositionID]
	if !ok || p.ElectionID != c.ElectionID {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.candidates {
		if existing.ElectionID == c.ElectionID && existing.PositionID == c.PositionID &&
			existing.FullName == c.FullName {
			return sentinel.ErrInvalidState
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	s.candidates[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCandidate(_ context.Context, id uuid.UUID) (*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListCandidates(_ context.Context, electionID uuid.UUID) ([]*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Candidate
	for _, c := range s.candidates {
		if c.ElectionID == electionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PositionID != out[j].PositionID {
			return out[i].PositionID.String() < out[j].PositionID.String()
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

// adjustTally applies a tally delta under the store lock. The ballot memory
// store calls this so increments are atomic rather than read-modify-write.
func (s *MemoryStore) adjustTally(id uuid.UUID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.VoteCount += delta
	return nil
}

// adjustVotesCast applies a votes_cast_count delta under the store lock.
// Increments are refused once the count would pass the eligible register;
// decrements always apply.
func (s *MemoryStore) adjustVotesCast(id uuid.UUID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if delta > 0 && e.VotesCastCount+delta > e.EligibleVoterCount {
		return sentinel.ErrRegisterFull
	}
	e.VotesCastCount += delta
	return nil
}

// AdjustTally and AdjustVotesCast are exported for the ballot store, which
// owns the transaction these run inside.
func (s *MemoryStore) AdjustTally(_ context.Context, candidateID uuid.UUID, delta int) error {
	return s.adjustTally(candidateID, delta)
}

func (s *MemoryStore) AdjustVotesCast(_ context.Context, electionID uuid.UUID, delta int) error {
	return s.adjustVotesCast(electionID, delta)
}
