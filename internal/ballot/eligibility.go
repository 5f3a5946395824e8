package ballot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agora/internal/election"
	"agora/internal/voter"
	dErrors "agora/pkg/domain-errors"
)

// DeviceVerifier is the slice of the device registry the gate needs.
type DeviceVerifier interface {
	Verify(ctx context.Context, voterID, fingerprint string) (bool, error)
}

// VotedChecker answers whether a voter already has a vote row. The ballot
// store satisfies it; the gate's answer is a UX pre-check, the storage
// constraint is the guarantee.
type VotedChecker interface {
	HasVoted(ctx context.Context, electionID uuid.UUID, voterID string) (bool, error)
}

// Gate decides whether a voter may cast a ballot in an election right now.
// Checks short-circuit in a fixed order and each failure carries a distinct
// reason code; the caller surfaces exactly one reason without revealing the
// check order.
type Gate struct {
	devices DeviceVerifier
	voted   VotedChecker
}

func NewGate(devices DeviceVerifier, voted VotedChecker) *Gate {
	return &Gate{devices: devices, voted: voted}
}

// Admit runs the rule chain. A nil return means eligible.
//
// Rule order (fail-fast):
//  1. identity verification - baseline
//  2. not already voted - cheapest actionable answer
//  3. scope membership - county match for county elections
//  4. lifecycle + window - distinct code so UIs can show a countdown
//  5. device binding - last, so a stolen session learns nothing earlier
func (g *Gate) Admit(ctx context.Context, profile voter.Profile, e *election.Election, now time.Time, fingerprint string) error {
	if !profile.Verified {
		return dErrors.New(dErrors.CodeNotVerified, "identity verification is not complete")
	}

	voted, err := g.voted.HasVoted(ctx, e.ID, profile.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not check voting record")
	}
	if voted {
		return dErrors.New(dErrors.CodeAlreadyVoted, "a ballot was already cast in this election")
	}

	if e.Scope == election.ScopeCounty && profile.County != e.County {
		return dErrors.New(dErrors.CodeScopeMismatch, "voter is not registered in this election's county")
	}

	if !e.IsVotingOpen(now) {
		return dErrors.New(dErrors.CodeWindowClosed, "voting is not open for this election")
	}

	ok, err := g.devices.Verify(ctx, profile.ID, fingerprint)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not verify device binding")
	}
	if !ok {
		return dErrors.New(dErrors.CodeDeviceMismatch, "request did not come from the voter's bound device")
	}

	return nil
}
