package ballot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"agora/pkg/platform/sentinel"
)

type voteKey struct {
	electionID uuid.UUID
	voterID    string
}

// MemoryStore is the in-memory vote store for unit tests and local runs. The
// uniqueness check and insert happen under one lock, so concurrent casts for
// the same voter see exactly one winner, matching the database constraint's
// behavior.
type MemoryStore struct {
	mu       sync.RWMutex
	votes    map[uuid.UUID]*Vote
	byVoter  map[voteKey]uuid.UUID
	byToken  map[uuid.UUID]uuid.UUID
	hasVoted map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		votes:    make(map[uuid.UUID]*Vote),
		byVoter:  make(map[voteKey]uuid.UUID),
		byToken:  make(map[uuid.UUID]uuid.UUID),
		hasVoted: make(map[string]time.Time),
	}
}

func (s *MemoryStore) InsertVote(_ context.Context, v *Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{electionID: v.ElectionID, voterID: v.VoterID}
	if _, ok := s.byVoter[key]; ok {
		return sentinel.ErrDuplicateVote
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	cp := *v
	cp.CandidateIDs = append([]uuid.UUID(nil), v.CandidateIDs...)
	s.votes[v.ID] = &cp
	s.byVoter[key] = v.ID
	s.byToken[v.Token] = v.ID
	return nil
}

func (s *MemoryStore) MarkVoted(_ context.Context, voterID string, votedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasVoted[voterID] = votedAt
	return nil
}

func (s *MemoryStore) ClearVoted(_ context.Context, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hasVoted, voterID)
	return nil
}

func (s *MemoryStore) HasVoted(_ context.Context, electionID uuid.UUID, voterID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byVoter[voteKey{electionID: electionID, voterID: voterID}]
	return ok, nil
}

func (s *MemoryStore) GetVote(_ context.Context, id uuid.UUID) (*Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *v
	cp.CandidateIDs = append([]uuid.UUID(nil), v.CandidateIDs...)
	return &cp, nil
}

func (s *MemoryStore) GetVoteByToken(ctx context.Context, token uuid.UUID) (*Vote, error) {
	s.mu.RLock()
	id, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.GetVote(ctx, id)
}

func (s *MemoryStore) DeleteVote(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.votes, id)
	delete(s.byVoter, voteKey{electionID: v.ElectionID, voterID: v.VoterID})
	delete(s.byToken, v.Token)
	return nil
}

func (s *MemoryStore) ElectionHasVotes(_ context.Context, electionID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key := range s.byVoter {
		if key.electionID == electionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CountVotes(_ context.Context, electionID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.byVoter {
		if key.electionID == electionID {
			n++
		}
	}
	return n, nil
}
