package election

import (
	"context"

	"github.com/google/uuid"
)

// Store persists elections, positions, and candidates. Implementations return
// sentinel errors for factual states; services translate them to domain
// codes.
type Store interface {
	CreateElection(ctx context.Context, e *Election) error
	GetElection(ctx context.Context, id uuid.UUID) (*Election, error)
	UpdateElection(ctx context.Context, e *Election) error
	ListElections(ctx context.Context) ([]*Election, error)

	// ListAutoManaged returns elections whose status still has auto rules to
	// evaluate (PENDING, ACTIVE, or COMPLETED-but-unpublished).
	ListAutoManaged(ctx context.Context) ([]*Election, error)

	// UpdateSerialized runs fn against a freshly loaded election while
	// holding that election's row so concurrent transition evaluators cannot
	// double-apply side effects. fn returning an error abandons the write.
	UpdateSerialized(ctx context.Context, id uuid.UUID, fn func(e *Election) error) error

	// DeleteElection refuses while any vote references the election.
	DeleteElection(ctx context.Context, id uuid.UUID) error

	CreatePosition(ctx context.Context, p *Position) error
	ListPositions(ctx context.Context, electionID uuid.UUID) ([]*Position, error)

	CreateCandidate(ctx context.Context, c *Candidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error)
	ListCandidates(ctx context.Context, electionID uuid.UUID) ([]*Candidate, error)
}
