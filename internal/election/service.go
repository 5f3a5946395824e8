package election

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"agora/internal/audit"
	"agora/internal/voter"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
	"agora/pkg/requestcontext"
)

// Service owns the administrative surface of the election aggregate: setup,
// forced lifecycle commands, the emergency pause, and results reporting.
type Service struct {
	store   Store
	census  voter.Census
	auditor *audit.Service
	logger  *slog.Logger
}

func NewService(store Store, census voter.Census, auditor *audit.Service, logger *slog.Logger) *Service {
	return &Service{store: store, census: census, auditor: auditor, logger: logger}
}

// Create validates and persists a new election in DRAFT status. The eligible
// voter count is a snapshot of the register at creation time.
func (s *Service) Create(ctx context.Context, e *Election) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = StatusDraft
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	county := ""
	if e.Scope == ScopeCounty {
		county = e.County
	}
	eligible, err := s.census.CountEligible(ctx, county)
	if err != nil {
		return s.translate(err, "could not count eligible voters")
	}
	e.EligibleVoterCount = eligible

	now := requestcontext.Now(ctx)
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.store.CreateElection(ctx, e); err != nil {
		return s.translate(err, "could not create election")
	}
	s.logger.InfoContext(ctx, "election created", "election_id", e.ID, "scope", e.Scope)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Election, error) {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		return nil, s.translate(err, "could not load election")
	}
	return e, nil
}

func (s *Service) List(ctx context.Context) ([]*Election, error) {
	list, err := s.store.ListElections(ctx)
	if err != nil {
		return nil, s.translate(err, "could not list elections")
	}
	return list, nil
}

// Delete removes an election that never received votes. Elections with votes
// are invalidation-then-archive territory, never deletion.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.DeleteElection(ctx, id)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeConflict, "elections with recorded votes cannot be deleted")
	}
	if err != nil {
		return s.translate(err, "could not delete election")
	}
	return nil
}

// AddPosition attaches a contest to an election that is still being set up.
func (s *Service) AddPosition(ctx context.Context, p *Position) error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeBadRequest, "position name is required")
	}
	if p.MaxVotes <= 0 {
		p.MaxVotes = 1
	}
	if err := s.requireMutable(ctx, p.ElectionID); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := s.store.CreatePosition(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeConflict, "position name or order already used in this election")
		}
		return s.translate(err, "could not create position")
	}
	return nil
}

// AddCandidate registers a candidate under one position of the election.
func (s *Service) AddCandidate(ctx context.Context, c *Candidate) error {
	if c.FullName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "candidate name is required")
	}
	if err := s.requireMutable(ctx, c.ElectionID); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := s.store.CreateCandidate(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeConflict, "candidate already registered for this position")
		}
		return s.translate(err, "could not create candidate")
	}
	return nil
}

func (s *Service) requireMutable(ctx context.Context, electionID uuid.UUID) error {
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return s.translate(err, "could not load election")
	}
	if e.Status == StatusArchived {
		return dErrors.New(dErrors.CodeConflict, "archived elections are immutable")
	}
	return nil
}

// Forced lifecycle commands. Each runs under the store's serialized update so
// it cannot race the automatic evaluator, and each leaves an audit entry.

func (s *Service) Open(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, audit.ActionBallotOpened, map[string]string{"trigger": "manual"},
		func(e *Election) error { return e.ForceOpen() })
}

func (s *Service) Close(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, audit.ActionBallotClosed, map[string]string{"trigger": "manual"},
		func(e *Election) error { return e.ForceClose() })
}

func (s *Service) PublishResults(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, audit.ActionResultsPublished, map[string]string{"trigger": "manual"},
		func(e *Election) error { return e.Publish() })
}

// Archive freezes a completed election. No audit action: archival changes
// nothing about ballots or results, it only ends mutability.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	err := s.store.UpdateSerialized(ctx, id, func(e *Election) error { return e.Archive() })
	if err != nil {
		return s.translate(err, "could not archive election")
	}
	return nil
}

// Pause suspends voting immediately regardless of the window. The stored
// status is untouched so Resume restores the previous state exactly.
func (s *Service) Pause(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeBadRequest, "a pause reason is required")
	}
	return s.transition(ctx, id, audit.ActionEmergencyPause, map[string]string{"reason": reason},
		func(e *Election) error { return e.Pause(reason) })
}

func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, audit.ActionEmergencyResume, nil,
		func(e *Election) error { return e.Resume() })
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, action audit.Action, metadata map[string]string, fn func(*Election) error) error {
	if err := s.store.UpdateSerialized(ctx, id, fn); err != nil {
		return s.translate(err, "could not apply transition")
	}
	if err := s.auditor.Record(ctx, id, nil, action, metadata); err != nil {
		// The transition is committed; a failed audit write is logged, not
		// unwound.
		s.logger.ErrorContext(ctx, "audit write failed after transition",
			"election_id", id, "action", action, "error", err)
	}
	s.logger.InfoContext(ctx, "election transition", "election_id", id, "action", action)
	return nil
}

// Results assembles per-position tallies. Unpublished results are still
// returned; the transport layer decides who may see them.
func (s *Service) Results(ctx context.Context, id uuid.UUID) (*Results, error) {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		return nil, s.translate(err, "could not load election")
	}
	positions, err := s.store.ListPositions(ctx, id)
	if err != nil {
		return nil, s.translate(err, "could not list positions")
	}
	candidates, err := s.store.ListCandidates(ctx, id)
	if err != nil {
		return nil, s.translate(err, "could not list candidates")
	}

	byPosition := make(map[uuid.UUID][]Candidate)
	for _, c := range candidates {
		byPosition[c.PositionID] = append(byPosition[c.PositionID], *c)
	}

	results := &Results{
		ElectionID:       e.ID,
		ResultsPublished: e.ResultsPublished,
		VotesCast:        e.VotesCastCount,
		EligibleVoters:   e.EligibleVoterCount,
	}
	for _, p := range positions {
		results.Positions = append(results.Positions, PositionResult{
			Position:   *p,
			Candidates: byPosition[p.ID],
		})
	}
	return results, nil
}

// StatusReport is the voter-facing view of where an election stands right now.
type StatusReport struct {
	ElectionID uuid.UUID `json:"election_id"`
	Status     Status    `json:"status"`
	Phase      Phase     `json:"phase"`
	Open       bool      `json:"open"`
}

// VotingStatus evaluates the window at the request's clock.
func (s *Service) VotingStatus(ctx context.Context, id uuid.UUID) (*StatusReport, error) {
	e, err := s.store.GetElection(ctx, id)
	if err != nil {
		return nil, s.translate(err, "could not load election")
	}
	now := requestcontext.Now(ctx)
	return &StatusReport{
		ElectionID: e.ID,
		Status:     e.EffectiveStatus(),
		Phase:      e.DisplayStatus(now),
		Open:       e.IsVotingOpen(now),
	}, nil
}

func (s *Service) translate(err error, message string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "election not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, message)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
}
