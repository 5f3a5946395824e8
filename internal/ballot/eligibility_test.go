package ballot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"agora/internal/election"
	"agora/internal/voter"
	dErrors "agora/pkg/domain-errors"
)

type stubDevices struct {
	match bool
	err   error
}

func (s stubDevices) Verify(context.Context, string, string) (bool, error) {
	return s.match, s.err
}

type stubVoted struct {
	voted bool
	err   error
}

func (s stubVoted) HasVoted(context.Context, uuid.UUID, string) (bool, error) {
	return s.voted, s.err
}

func gateElection(t *testing.T, now time.Time) *election.Election {
	t.Helper()
	d := election.DateOf(now)
	return &election.Election{
		ID:          uuid.New(),
		Name:        "County Poll",
		Scope:       election.ScopeCounty,
		County:      "Nairobi",
		VotingDate:  &d,
		StartTime:   0,
		EndTime:     election.TimeOfDay(23*3600 + 59*60),
		Status:      election.StatusActive,
		AllowVoting: true,
	}
}

func TestGateAdmitHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g := NewGate(stubDevices{match: true}, stubVoted{})
	p := voter.Profile{ID: "v1", County: "Nairobi", Verified: true}

	assert.NoError(t, g.Admit(context.Background(), p, gateElection(t, now), now, "fp"))
}

func TestGateAdmitRejectionCodes(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	verified := voter.Profile{ID: "v1", County: "Nairobi", Verified: true}

	tests := []struct {
		name    string
		gate    *Gate
		profile voter.Profile
		mutate  func(*election.Election)
		want    dErrors.Code
	}{
		{
			name:    "not verified",
			gate:    NewGate(stubDevices{match: true}, stubVoted{}),
			profile: voter.Profile{ID: "v1", County: "Nairobi"},
			want:    dErrors.CodeNotVerified,
		},
		{
			name:    "already voted",
			gate:    NewGate(stubDevices{match: true}, stubVoted{voted: true}),
			profile: verified,
			want:    dErrors.CodeAlreadyVoted,
		},
		{
			name:    "wrong county",
			gate:    NewGate(stubDevices{match: true}, stubVoted{}),
			profile: voter.Profile{ID: "v1", County: "Mombasa", Verified: true},
			want:    dErrors.CodeScopeMismatch,
		},
		{
			name:    "window closed",
			gate:    NewGate(stubDevices{match: true}, stubVoted{}),
			profile: verified,
			mutate:  func(e *election.Election) { e.AllowVoting = false },
			want:    dErrors.CodeWindowClosed,
		},
		{
			name:    "device mismatch",
			gate:    NewGate(stubDevices{match: false}, stubVoted{}),
			profile: verified,
			want:    dErrors.CodeDeviceMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := gateElection(t, now)
			if tt.mutate != nil {
				tt.mutate(e)
			}
			err := tt.gate.Admit(context.Background(), tt.profile, e, now, "fp")
			assert.True(t, dErrors.HasCode(err, tt.want), "got %v, want code %s", err, tt.want)
		})
	}
}

func TestGateAdmitNationalIgnoresCounty(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	e := gateElection(t, now)
	e.Scope = election.ScopeNational
	e.County = ""

	g := NewGate(stubDevices{match: true}, stubVoted{})
	p := voter.Profile{ID: "v1", County: "Mombasa", Verified: true}

	assert.NoError(t, g.Admit(context.Background(), p, e, now, "fp"))
}

func TestGateAdmitStoreFailuresAreUnavailable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := voter.Profile{ID: "v1", County: "Nairobi", Verified: true}

	g := NewGate(stubDevices{match: true}, stubVoted{err: errors.New("db down")})
	err := g.Admit(context.Background(), p, gateElection(t, now), now, "fp")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.True(t, dErrors.Retryable(err))

	g = NewGate(stubDevices{err: errors.New("db down")}, stubVoted{})
	err = g.Admit(context.Background(), p, gateElection(t, now), now, "fp")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
