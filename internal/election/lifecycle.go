package election

import (
	"time"

	dErrors "agora/pkg/domain-errors"
)

// Transition names an automatic or forced lifecycle change. The audit ledger
// and metrics record these.
type Transition string

const (
	TransitionOpened    Transition = "opened"
	TransitionClosed    Transition = "closed"
	TransitionPublished Transition = "published"
)

// EvaluateTransitions applies the auto-transition rules to the election at
// the given instant and returns the transitions that fired, in order. It
// mutates the receiver only; persistence is the caller's job, and on a failed
// write the caller discards the mutated copy so the next tick re-evaluates.
//
// The evaluation is idempotent: re-running it on an already-transitioned
// election fires nothing.
func (e *Election) EvaluateTransitions(now time.Time) []Transition {
	var fired []Transition

	if e.Status == StatusPending && e.AutoOpen && e.AllowVoting && e.VotingDate != nil &&
		windowOpenReached(now, *e.VotingDate, e.StartTime) &&
		!windowCloseReached(now, *e.VotingDate, e.StartTime, e.EndTime) {
		e.Status = StatusActive
		fired = append(fired, TransitionOpened)
	}

	if e.Status == StatusActive && e.AutoClose && e.VotingDate != nil &&
		windowCloseReached(now, *e.VotingDate, e.StartTime, e.EndTime) {
		e.Status = StatusCompleted
		// Closing always disables the voting flag so a later manual
		// reactivation is an explicit decision.
		e.AllowVoting = false
		fired = append(fired, TransitionClosed)
	}

	if e.Status == StatusCompleted && e.AutoPublish && !e.ResultsPublished {
		e.ResultsPublished = true
		fired = append(fired, TransitionPublished)
	}

	return fired
}

// EffectiveStatus reports PAUSED while the emergency pause flag is set on an
// active election, without changing the stored status.
func (e *Election) EffectiveStatus() Status {
	if e.EmergencyPause && e.Status == StatusActive {
		return StatusPaused
	}
	return e.Status
}

// Forced transitions used by administrative commands. Each checks the current
// state so an out-of-order command is rejected rather than silently applied.

func (e *Election) ForceOpen() error {
	switch e.Status {
	case StatusDraft, StatusPending:
		e.Status = StatusActive
		e.AllowVoting = true
		return nil
	}
	return dErrors.New(dErrors.CodeConflict, "election cannot be opened from its current status")
}

func (e *Election) ForceClose() error {
	if e.Status != StatusActive {
		return dErrors.New(dErrors.CodeConflict, "only active elections can be closed")
	}
	e.Status = StatusCompleted
	e.AllowVoting = false
	return nil
}

func (e *Election) Publish() error {
	if e.Status != StatusCompleted {
		return dErrors.New(dErrors.CodeConflict, "results can only be published once completed")
	}
	e.ResultsPublished = true
	return nil
}

func (e *Election) Archive() error {
	if e.Status != StatusCompleted {
		return dErrors.New(dErrors.CodeConflict, "only completed elections can be archived")
	}
	e.Status = StatusArchived
	return nil
}

// Pause sets the emergency override. Voting is suspended regardless of the
// window; the stored status does not change.
func (e *Election) Pause(reason string) error {
	if e.Status != StatusActive {
		return dErrors.New(dErrors.CodeConflict, "only active elections can be paused")
	}
	e.EmergencyPause = true
	e.PauseReason = reason
	return nil
}

func (e *Election) Resume() error {
	if !e.EmergencyPause {
		return dErrors.New(dErrors.CodeConflict, "election is not paused")
	}
	e.EmergencyPause = false
	e.PauseReason = ""
	return nil
}
