// Package election owns the election aggregate: its scope, voting window,
// lifecycle status, positions, and candidates. The window evaluator and the
// lifecycle rules live here; recording ballots lives in the ballot package.
package election

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "agora/pkg/domain-errors"
)

// Scope says who may vote: every verified voter (NATIONAL) or only voters
// registered in a specific county (COUNTY).
type Scope string

const (
	ScopeNational Scope = "NATIONAL"
	ScopeCounty   Scope = "COUNTY"
)

// ParseScope constructs a Scope from external input.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeNational, ScopeCounty:
		return Scope(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "invalid election scope")
}

// Status is the lifecycle state of an election.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusArchived  Status = "ARCHIVED"
)

var validStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusPending:   true,
	StatusActive:    true,
	StatusPaused:    true,
	StatusCompleted: true,
	StatusArchived:  true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid election status")
	}
	return st, nil
}

// Election is the aggregate root. Counters are denormalized and mutated only
// by the ballot store's transaction and the lifecycle evaluator.
type Election struct {
	ID          uuid.UUID
	Name        string
	Scope       Scope
	County      string // set only for COUNTY scope
	Description string

	VotingDate *Date // nil means "no date set": window degrades to status-only gating
	StartTime  TimeOfDay
	EndTime    TimeOfDay

	Status           Status
	AllowVoting      bool
	ResultsPublished bool
	EmergencyPause   bool
	PauseReason      string

	AutoOpen    bool
	AutoClose   bool
	AutoPublish bool

	EligibleVoterCount int
	VotesCastCount     int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate enforces the scope invariant: national elections must not carry a
// county, county elections must.
func (e *Election) Validate() error {
	if e.Name == "" {
		return dErrors.New(dErrors.CodeBadRequest, "election name is required")
	}
	switch e.Scope {
	case ScopeNational:
		if e.County != "" {
			return dErrors.New(dErrors.CodeBadRequest, "national elections must not carry a county")
		}
	case ScopeCounty:
		if e.County == "" {
			return dErrors.New(dErrors.CodeBadRequest, "county elections require a county")
		}
	default:
		return dErrors.New(dErrors.CodeBadRequest, "invalid election scope")
	}
	return nil
}

// Position is one contest on the ballot. Order and name are unique within the
// election.
type Position struct {
	ID          uuid.UUID
	ElectionID  uuid.UUID
	Order       int
	Name        string
	Description string
	MaxVotes    int
	Active      bool
}

// Candidate runs for exactly one (election, position) pair. VoteCount is
// mutated only by the ballot store's atomic increment.
type Candidate struct {
	ID         uuid.UUID
	ElectionID uuid.UUID
	PositionID uuid.UUID
	FullName   string
	Order      int
	Active     bool
	VoteCount  int
}

// PositionResult is a per-position tally slice for results reporting.
type PositionResult struct {
	Position   Position
	Candidates []Candidate
}

// Results pairs the tallies with the published flag so callers can decide
// whether to display them.
type Results struct {
	ElectionID       uuid.UUID
	ResultsPublished bool
	VotesCast        int
	EligibleVoters   int
	Positions        []PositionResult
}

func (e *Election) String() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.Scope)
}
