package ballot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"agora/internal/audit"
	"agora/internal/device"
	"agora/internal/election"
	"agora/internal/voter"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
	"agora/pkg/requestcontext"
)

type fixture struct {
	svc       *Service
	elections *election.MemoryStore
	votes     *MemoryStore
	dir       *voter.MemoryDirectory
	devices   *device.Registry
	auditor   *audit.Service

	e    *election.Election
	pres *election.Position
	gov  *election.Position
	a1   *election.Candidate
	a2   *election.Candidate
	g1   *election.Candidate

	ctx context.Context
	now time.Time
}

func (f *fixture) selections() Selections {
	return Selections{f.pres.ID: f.a1.ID, f.gov.ID: f.g1.ID}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := election.DateOf(now)

	elections := election.NewMemoryStore()
	votes := NewMemoryStore()
	elections.SetVoteChecker(votes)
	dir := voter.NewMemoryDirectory()
	devices := device.NewRegistry(device.NewMemoryStore())
	auditor := audit.NewService(audit.NewMemoryStore())

	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithDeviceFingerprint(ctx, "fp-1")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0 (X11; Linux x86_64) Firefox/142.0")

	e := &election.Election{
		ID:                 uuid.New(),
		Name:               "General Election",
		Scope:              election.ScopeNational,
		VotingDate:         &d,
		StartTime:          8 * 3600,
		EndTime:            17 * 3600,
		Status:             election.StatusActive,
		AllowVoting:        true,
		EligibleVoterCount: 100,
	}
	require.NoError(t, elections.CreateElection(ctx, e))

	pres := &election.Position{ElectionID: e.ID, Name: "President", Order: 1, MaxVotes: 1, Active: true}
	gov := &election.Position{ElectionID: e.ID, Name: "Governor", Order: 2, MaxVotes: 1, Active: true}
	require.NoError(t, elections.CreatePosition(ctx, pres))
	require.NoError(t, elections.CreatePosition(ctx, gov))

	a1 := &election.Candidate{ElectionID: e.ID, PositionID: pres.ID, FullName: "Amina Odhiambo", Order: 1, Active: true}
	a2 := &election.Candidate{ElectionID: e.ID, PositionID: pres.ID, FullName: "Brian Kiprotich", Order: 2, Active: true}
	g1 := &election.Candidate{ElectionID: e.ID, PositionID: gov.ID, FullName: "Cynthia Wanjiru", Order: 1, Active: true}
	require.NoError(t, elections.CreateCandidate(ctx, a1))
	require.NoError(t, elections.CreateCandidate(ctx, a2))
	require.NoError(t, elections.CreateCandidate(ctx, g1))

	dir.Put(voter.Profile{ID: "v1", FullName: "Test Voter", County: "Nairobi", Verified: true})
	require.NoError(t, devices.Bind(ctx, "v1", "fp-1"))

	svc := NewService(
		elections, elections, votes, dir,
		NewGate(devices, votes), auditor,
		NewHasher("test-secret"), NopTxRunner{}, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return &fixture{
		svc: svc, elections: elections, votes: votes, dir: dir,
		devices: devices, auditor: auditor,
		e: e, pres: pres, gov: gov, a1: a1, a2: a2, g1: g1,
		ctx: ctx, now: now,
	}
}

func (f *fixture) tally(t *testing.T, id uuid.UUID) int {
	t.Helper()
	c, err := f.elections.GetCandidate(context.Background(), id)
	require.NoError(t, err)
	return c.VoteCount
}

func TestCastVoteHappyPath(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.NotEqual(t, uuid.Nil, receipt.Token)
	assert.True(t, receipt.Timestamp.Equal(f.now), "receipt carries the request instant")

	assert.Equal(t, 1, f.tally(t, f.a1.ID))
	assert.Equal(t, 0, f.tally(t, f.a2.ID))
	assert.Equal(t, 1, f.tally(t, f.g1.ID))

	e, err := f.elections.GetElection(f.ctx, f.e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.VotesCastCount)

	voted, err := f.votes.HasVoted(f.ctx, f.e.ID, "v1")
	require.NoError(t, err)
	assert.True(t, voted)

	trail, err := f.auditor.Trail(f.ctx, f.e.ID, audit.Filter{Action: audit.ActionVoteCast})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.NotNil(t, trail[0].VoteID)
	assert.Equal(t, "203.0.113.7", trail[0].IPAddress)

	require.NoError(t, f.auditor.Verify(f.ctx, f.e.ID))
}

func TestCastVoteSecondAttemptRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	require.NoError(t, err)

	_, err = f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyVoted))

	assert.Equal(t, 1, f.tally(t, f.a1.ID), "the rejected attempt must not touch tallies")
}

func TestCastVoteIncompleteBallotLeavesNoTrace(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, Selections{f.pres.ID: f.a1.ID})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidBallot))

	assert.Equal(t, 0, f.tally(t, f.a1.ID))
	voted, err := f.votes.HasVoted(f.ctx, f.e.ID, "v1")
	require.NoError(t, err)
	assert.False(t, voted, "a rejected ballot must not mark the voter as having voted")

	// The voter can still cast a correct ballot afterwards.
	_, err = f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	assert.NoError(t, err)
}

func TestCastVoteCandidateFromWrongPosition(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, Selections{f.pres.ID: f.g1.ID, f.gov.ID: f.a1.ID})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidBallot))
}

func TestCastVoteInactiveCandidateRejected(t *testing.T) {
	f := newFixture(t)
	withdrawn := &election.Candidate{
		ElectionID: f.e.ID, PositionID: f.pres.ID,
		FullName: "Withdrawn Candidate", Order: 3, Active: false,
	}
	require.NoError(t, f.elections.CreateCandidate(f.ctx, withdrawn))

	_, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, Selections{f.pres.ID: withdrawn.ID, f.gov.ID: f.g1.ID})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidBallot))

	_, err = f.svc.CastVote(f.ctx, "v1", f.e.ID, Selections{f.pres.ID: uuid.New(), f.gov.ID: f.g1.ID})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidBallot), "unknown candidate IDs are rejected the same way")
}

func TestCastVoteUnknownVoter(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CastVote(f.ctx, "ghost", f.e.ID, f.selections())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotVerified))
}

func TestCastVoteUnknownElection(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CastVote(f.ctx, "v1", uuid.New(), f.selections())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCastVoteWrongDevice(t *testing.T) {
	f := newFixture(t)
	ctx := requestcontext.WithDeviceFingerprint(f.ctx, "someone-elses-laptop")

	_, err := f.svc.CastVote(ctx, "v1", f.e.ID, f.selections())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDeviceMismatch))
}

func TestCastVoteOutsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := requestcontext.WithTime(f.ctx, time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC))

	_, err := f.svc.CastVote(ctx, "v1", f.e.ID, f.selections())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeWindowClosed))
}

func TestCastVoteConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)

	const attempts = 50
	var wins, duplicates atomic.Int64
	g := new(errgroup.Group)
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeAlreadyVoted):
				duplicates.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), wins.Load(), "exactly one attempt wins")
	assert.Equal(t, int64(attempts-1), duplicates.Load())
	assert.Equal(t, 1, f.tally(t, f.a1.ID), "tally counts the winner only")

	e, err := f.elections.GetElection(f.ctx, f.e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.VotesCastCount)
}

// hookTxRunner runs a callback before the transactional function, standing in
// for a concurrent writer that commits between the outer check and the
// transaction.
type hookTxRunner struct {
	before func()
}

func (r hookTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.before != nil {
		r.before()
	}
	return fn(ctx)
}

func TestCastVoteSeesPauseCommittedMidFlight(t *testing.T) {
	f := newFixture(t)
	f.svc.txr = hookTxRunner{before: func() {
		require.NoError(t, f.elections.UpdateSerialized(f.ctx, f.e.ID, func(e *election.Election) error {
			return e.Pause("ballot box irregularity")
		}))
	}}

	_, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeWindowClosed), "got %v", err)

	assert.Equal(t, 0, f.tally(t, f.a1.ID))
	voted, err := f.votes.HasVoted(f.ctx, f.e.ID, "v1")
	require.NoError(t, err)
	assert.False(t, voted, "a pause committed mid-flight leaves no trace of the cast")
}

func TestCastVoteCappedByEligibleRegister(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.elections.UpdateSerialized(f.ctx, f.e.ID, func(e *election.Election) error {
		e.EligibleVoterCount = 1
		return nil
	}))

	// v2 was verified after the register snapshot was taken.
	f.dir.Put(voter.Profile{ID: "v2", FullName: "Late Voter", County: "Nairobi", Verified: true})
	require.NoError(t, f.devices.Bind(f.ctx, "v2", "fp-2"))
	ctx2 := requestcontext.WithDeviceFingerprint(f.ctx, "fp-2")

	_, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	require.NoError(t, err)

	_, err = f.svc.CastVote(ctx2, "v2", f.e.ID, f.selections())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)

	assert.Equal(t, 1, f.tally(t, f.a1.ID))
	e, err := f.elections.GetElection(f.ctx, f.e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.VotesCastCount)

	// The store guard backs the service check: a raw increment past the
	// register is refused, decrements still apply.
	assert.ErrorIs(t, f.elections.AdjustVotesCast(f.ctx, f.e.ID, 1), sentinel.ErrRegisterFull)
	require.NoError(t, f.elections.AdjustVotesCast(f.ctx, f.e.ID, -1))
}

func TestInvalidateVoteReversesEverything(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	require.NoError(t, err)
	v, err := f.votes.GetVoteByToken(f.ctx, receipt.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.InvalidateVote(f.ctx, v.ID, "cast under duress"))

	assert.Equal(t, 0, f.tally(t, f.a1.ID))
	assert.Equal(t, 0, f.tally(t, f.g1.ID))

	e, err := f.elections.GetElection(f.ctx, f.e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, e.VotesCastCount)

	voted, err := f.votes.HasVoted(f.ctx, f.e.ID, "v1")
	require.NoError(t, err)
	assert.False(t, voted, "the voter may vote again after invalidation")

	_, err = f.svc.Receipt(f.ctx, receipt.Token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	trail, err := f.auditor.Trail(f.ctx, f.e.ID, audit.Filter{Action: audit.ActionVoteInvalidated})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "cast under duress", trail[0].Metadata["reason"])

	require.NoError(t, f.auditor.Verify(f.ctx, f.e.ID))
}

func TestInvalidateVoteRefusedOnArchivedElection(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	require.NoError(t, err)
	v, err := f.votes.GetVoteByToken(f.ctx, receipt.Token)
	require.NoError(t, err)

	require.NoError(t, f.elections.UpdateSerialized(f.ctx, f.e.ID, func(e *election.Election) error {
		e.Status = election.StatusArchived
		return nil
	}))

	err = f.svc.InvalidateVote(f.ctx, v.ID, "too late")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Equal(t, 1, f.tally(t, f.a1.ID))
}

func TestVerifyVoteDetectsTampering(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.svc.CastVote(f.ctx, "v1", f.e.ID, f.selections())
	require.NoError(t, err)
	v, err := f.votes.GetVoteByToken(f.ctx, receipt.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.VerifyVote(f.ctx, v.ID))

	f.votes.mu.Lock()
	f.votes.votes[v.ID].VoteHash = "0000deadbeef"
	f.votes.mu.Unlock()

	err = f.svc.VerifyVote(f.ctx, v.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrityFailure))
}

func TestReceiptUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Receipt(f.ctx, uuid.New())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
