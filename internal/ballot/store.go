package ballot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists vote rows. The (election_id, voter_id) uniqueness constraint
// lives here, at the storage layer - application pre-checks are a UX
// optimization, never the correctness mechanism.
type Store interface {
	// InsertVote writes the vote row and its candidate links. Returns
	// sentinel.ErrDuplicateVote when the (election, voter) constraint fires;
	// callers translate that to "already voted".
	InsertVote(ctx context.Context, v *Vote) error

	// MarkVoted maintains the denormalized has_voted mirror on the voter
	// record inside the same transaction.
	MarkVoted(ctx context.Context, voterID string, votedAt time.Time) error

	// ClearVoted reverses MarkVoted during administrative invalidation.
	ClearVoted(ctx context.Context, voterID string) error

	HasVoted(ctx context.Context, electionID uuid.UUID, voterID string) (bool, error)
	GetVote(ctx context.Context, id uuid.UUID) (*Vote, error)
	GetVoteByToken(ctx context.Context, token uuid.UUID) (*Vote, error)

	// DeleteVote removes the row during administrative invalidation only.
	DeleteVote(ctx context.Context, id uuid.UUID) error

	ElectionHasVotes(ctx context.Context, electionID uuid.UUID) (bool, error)
	CountVotes(ctx context.Context, electionID uuid.UUID) (int, error)
}

// TallyStore is the slice of the election store the cast transaction mutates.
// Increments must be atomic counter operations, not read-modify-write.
type TallyStore interface {
	AdjustTally(ctx context.Context, candidateID uuid.UUID, delta int) error
	AdjustVotesCast(ctx context.Context, electionID uuid.UUID, delta int) error
}

// TxRunner wraps the steps of a cast or invalidation into one atomic unit.
// The postgres implementation opens a SQL transaction carried in the context;
// the in-memory implementation relies on upfront validation plus the stores'
// own locking.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTxRunner backs the in-memory wiring: the memory stores are individually
// atomic and the service validates everything before its first mutation, so
// there is nothing to roll back.
type NopTxRunner struct{}

func (NopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
