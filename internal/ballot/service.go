package ballot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agora/internal/audit"
	"agora/internal/election"
	"agora/internal/platform/metrics"
	"agora/internal/voter"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
	"agora/pkg/requestcontext"
)

// Service executes the vote-cast transaction and the administrative
// invalidation path. It is the only component that mutates vote rows,
// tallies, or the has_voted flag.
type Service struct {
	elections election.Store
	tallies   TallyStore
	votes     Store
	voters    voter.Directory
	gate      *Gate
	auditor   *audit.Service
	hasher    *Hasher
	txr       TxRunner
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(
	elections election.Store,
	tallies TallyStore,
	votes Store,
	voters voter.Directory,
	gate *Gate,
	auditor *audit.Service,
	hasher *Hasher,
	txr TxRunner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		elections: elections,
		tallies:   tallies,
		votes:     votes,
		voters:    voters,
		gate:      gate,
		auditor:   auditor,
		hasher:    hasher,
		txr:       txr,
		metrics:   m,
		logger:    logger,
	}
}

// CastVote records one ballot for the voter, exactly once per election.
//
// The outer eligibility check is a UX courtesy; the same checks run again
// inside the transaction, and the storage-level uniqueness constraint is what
// actually prevents a double cast when two requests race past both checks.
func (s *Service) CastVote(ctx context.Context, voterID string, electionID uuid.UUID, selections Selections) (*Receipt, error) {
	started := time.Now()
	receipt, err := s.castVote(ctx, voterID, electionID, selections)
	if s.metrics != nil {
		s.metrics.CastDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			s.metrics.VotesRejected.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		} else {
			s.metrics.VotesCast.Inc()
		}
	}
	return receipt, err
}

func (s *Service) castVote(ctx context.Context, voterID string, electionID uuid.UUID, selections Selections) (*Receipt, error) {
	now := requestcontext.Now(ctx)
	fingerprint := requestcontext.DeviceFingerprint(ctx)

	profile, err := s.voters.Lookup(ctx, voterID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotVerified, "voter is not registered")
	}
	if err != nil {
		return nil, s.transient(err, "voter lookup failed")
	}

	e, err := s.elections.GetElection(ctx, electionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "election not found")
	}
	if err != nil {
		return nil, s.transient(err, "election lookup failed")
	}

	if err := s.gate.Admit(ctx, profile, e, now, fingerprint); err != nil {
		return nil, err
	}

	candidateIDs, err := s.validateSelections(ctx, e, selections)
	if err != nil {
		return nil, err
	}

	vote := &Vote{
		ID:           uuid.New(),
		ElectionID:   e.ID,
		VoterID:      profile.ID,
		CandidateIDs: candidateIDs,
		IPAddress:    requestcontext.ClientIP(ctx),
		Fingerprint:  fingerprint,
		Timestamp:    now,
		Token:        uuid.New(),
	}
	vote.VoteHash = s.hasher.Compute(vote.VoterID, vote.ElectionID.String(), vote.Timestamp, vote.Token.String())

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		// Re-validate inside the atomic unit against a fresh election row: a
		// pause or force-close committed between the outer check and this
		// transaction must win, so the earlier snapshot is not reused.
		current, err := s.elections.GetElection(ctx, electionID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "election not found")
		}
		if err != nil {
			return err
		}
		if err := s.gate.Admit(ctx, profile, current, now, fingerprint); err != nil {
			return err
		}
		if current.VotesCastCount >= current.EligibleVoterCount {
			return dErrors.New(dErrors.CodeConflict, "votes cast have reached the eligible register count")
		}

		if err := s.votes.InsertVote(ctx, vote); err != nil {
			if errors.Is(err, sentinel.ErrDuplicateVote) {
				// The losing half of a double-click. Not a server error.
				return dErrors.New(dErrors.CodeAlreadyVoted, "a ballot was already cast in this election")
			}
			return err
		}
		for _, candidateID := range vote.CandidateIDs {
			if err := s.tallies.AdjustTally(ctx, candidateID, 1); err != nil {
				return err
			}
		}
		if err := s.votes.MarkVoted(ctx, profile.ID, now); err != nil {
			return err
		}
		if err := s.tallies.AdjustVotesCast(ctx, e.ID, 1); err != nil {
			if errors.Is(err, sentinel.ErrRegisterFull) {
				return dErrors.New(dErrors.CodeConflict, "votes cast would exceed the eligible register")
			}
			return err
		}
		return s.auditor.Record(ctx, e.ID, &vote.ID, audit.ActionVoteCast, map[string]string{
			"voter_id": profile.ID,
		})
	})
	if err != nil {
		return nil, s.transient(err, "vote was not recorded")
	}

	s.logger.InfoContext(ctx, "vote cast",
		"election_id", e.ID,
		"token", vote.Token,
	)
	return &Receipt{Token: vote.Token, Timestamp: vote.Timestamp}, nil
}

// validateSelections checks the ballot wholesale: exactly one entry per
// active position, every candidate active and belonging to its claimed
// position. Partial ballots are rejected, not partially accepted.
func (s *Service) validateSelections(ctx context.Context, e *election.Election, selections Selections) ([]uuid.UUID, error) {
	positions, err := s.elections.ListPositions(ctx, e.ID)
	if err != nil {
		return nil, s.transient(err, "position lookup failed")
	}
	candidates, err := s.elections.ListCandidates(ctx, e.ID)
	if err != nil {
		return nil, s.transient(err, "candidate lookup failed")
	}
	byID := make(map[uuid.UUID]*election.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	var active []*election.Position
	for _, p := range positions {
		if p.Active {
			active = append(active, p)
		}
	}
	if len(selections) != len(active) {
		return nil, dErrors.New(dErrors.CodeInvalidBallot, "ballot must select exactly one candidate per position")
	}

	candidateIDs := make([]uuid.UUID, 0, len(active))
	for _, p := range active {
		candidateID, ok := selections[p.ID]
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidBallot, "ballot is missing a position")
		}
		c, ok := byID[candidateID]
		if !ok || !c.Active || c.PositionID != p.ID || c.ElectionID != e.ID {
			return nil, dErrors.New(dErrors.CodeInvalidBallot, "invalid candidate selection")
		}
		candidateIDs = append(candidateIDs, candidateID)
	}
	return candidateIDs, nil
}

// Receipt confirms a recorded ballot by its anonymous token. The returned
// receipt carries no selections and no voter identity.
func (s *Service) Receipt(ctx context.Context, token uuid.UUID) (*Receipt, error) {
	v, err := s.votes.GetVoteByToken(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no ballot recorded for this token")
	}
	if err != nil {
		return nil, s.transient(err, "receipt lookup failed")
	}
	return &Receipt{Token: v.Token, Timestamp: v.Timestamp}, nil
}

// VerifyVote recomputes the stored integrity hash. Admin-only read path.
func (s *Service) VerifyVote(ctx context.Context, voteID uuid.UUID) error {
	v, err := s.votes.GetVote(ctx, voteID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "vote not found")
	}
	if err != nil {
		return s.transient(err, "vote lookup failed")
	}
	if err := s.hasher.Verify(v); err != nil {
		return err
	}
	if err := s.auditor.Record(ctx, v.ElectionID, &v.ID, audit.ActionVoteVerified, nil); err != nil {
		s.logger.ErrorContext(ctx, "audit write failed after verification", "vote_id", v.ID, "error", err)
	}
	return nil
}

// InvalidateVote is the only deletion path for a vote: it reverses every
// side effect of the cast inside one transaction and appends a compensating
// audit entry. Never a silent delete.
func (s *Service) InvalidateVote(ctx context.Context, voteID uuid.UUID, reason string) error {
	v, err := s.votes.GetVote(ctx, voteID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "vote not found")
	}
	if err != nil {
		return s.transient(err, "vote lookup failed")
	}

	e, err := s.elections.GetElection(ctx, v.ElectionID)
	if err != nil {
		return s.transient(err, "election lookup failed")
	}
	if e.Status == election.StatusArchived {
		return dErrors.New(dErrors.CodeConflict, "archived elections are immutable")
	}

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.votes.DeleteVote(ctx, v.ID); err != nil {
			return err
		}
		for _, candidateID := range v.CandidateIDs {
			if err := s.tallies.AdjustTally(ctx, candidateID, -1); err != nil {
				return err
			}
		}
		if err := s.votes.ClearVoted(ctx, v.VoterID); err != nil {
			return err
		}
		if err := s.tallies.AdjustVotesCast(ctx, v.ElectionID, -1); err != nil {
			return err
		}
		return s.auditor.Record(ctx, v.ElectionID, &v.ID, audit.ActionVoteInvalidated, map[string]string{
			"voter_id": v.VoterID,
			"reason":   reason,
		})
	})
	if err != nil {
		return s.transient(err, "vote was not invalidated")
	}

	if s.metrics != nil {
		s.metrics.VotesInvalidated.Inc()
	}
	s.logger.InfoContext(ctx, "vote invalidated", "election_id", v.ElectionID, "vote_id", v.ID)
	return nil
}

// transient passes coded rejections through untouched and classifies
// everything else as retryable infrastructure failure: nothing was committed.
func (s *Service) transient(err error, message string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, message)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
}
