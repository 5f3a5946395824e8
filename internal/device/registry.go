// Package device binds each voter identity to a single device fingerprint
// and rejects sessions presenting a different one. Fingerprints are opaque
// strings; how they are derived is the transport middleware's concern.
package device

import (
	"context"
	"errors"
	"time"

	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"

	"agora/internal/election"
	"agora/internal/platform/config"
)

// Binding maps one voter to one fingerprint. Set once at registration,
// cleared only through an approved reset.
type Binding struct {
	VoterID     string
	Fingerprint string
	BoundAt     time.Time
}

// Store persists bindings with two uniqueness facts: one binding per voter,
// one voter per fingerprint.
type Store interface {
	Insert(ctx context.Context, b Binding) error
	GetByVoter(ctx context.Context, voterID string) (Binding, error)
	Delete(ctx context.Context, voterID string) error
}

// Registry is the service surface consumed by the eligibility gate and the
// admin reset path.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Bind registers a voter's device once. Re-binding and fingerprint reuse are
// both rejected.
func (r *Registry) Bind(ctx context.Context, voterID, fingerprint string) error {
	if voterID == "" || fingerprint == "" {
		return dErrors.New(dErrors.CodeBadRequest, "voter and fingerprint are required")
	}
	err := r.store.Insert(ctx, Binding{
		VoterID:     voterID,
		Fingerprint: fingerprint,
		BoundAt:     time.Now(),
	})
	switch {
	case errors.Is(err, sentinel.ErrAlreadyBound):
		return dErrors.New(dErrors.CodeConflict, "voter already has a bound device")
	case errors.Is(err, sentinel.ErrFingerprintTaken):
		return dErrors.New(dErrors.CodeConflict, "device is already bound to another voter")
	}
	return err
}

// Verify reports whether the presented fingerprint matches the voter's
// binding. An unbound voter never verifies; binding happens at registration,
// so a missing row means the identity subsystem skipped it.
func (r *Registry) Verify(ctx context.Context, voterID, fingerprint string) (bool, error) {
	b, err := r.store.GetByVoter(ctx, voterID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fingerprint != "" && b.Fingerprint == fingerprint, nil
}

// Reset clears a voter's binding after an approved out-of-band request. The
// approval workflow lives outside this engine; the lead-time rule does not:
// a reset is refused within DeviceResetLeadDays of the voting date.
func (r *Registry) Reset(ctx context.Context, voterID string, votingDate *election.Date, now time.Time) error {
	if votingDate != nil {
		days := election.DateOf(now).DaysUntil(*votingDate)
		if days >= 0 && days < config.DeviceResetLeadDays {
			return dErrors.New(dErrors.CodeForbidden, "device resets are locked this close to the voting date")
		}
	}
	err := r.store.Delete(ctx, voterID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "no device binding for voter")
	}
	return err
}
