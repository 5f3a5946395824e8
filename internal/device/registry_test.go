package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/election"
	dErrors "agora/pkg/domain-errors"
)

func TestBindAndVerify(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	require.NoError(t, r.Bind(ctx, "v1", "fp-1"))

	ok, err := r.Verify(ctx, "v1", "fp-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Verify(ctx, "v1", "fp-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyUnboundVoterFails(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	ok, err := r.Verify(ctx, "v1", "fp-1")
	require.NoError(t, err)
	assert.False(t, ok, "an unbound voter never verifies")
}

func TestBindIsOneShot(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	require.NoError(t, r.Bind(ctx, "v1", "fp-1"))

	err := r.Bind(ctx, "v1", "fp-2")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "re-binding is rejected")

	err = r.Bind(ctx, "v2", "fp-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "one device serves one voter")
}

func TestBindRequiresInputs(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	assert.True(t, dErrors.HasCode(r.Bind(ctx, "", "fp"), dErrors.CodeBadRequest))
	assert.True(t, dErrors.HasCode(r.Bind(ctx, "v1", ""), dErrors.CodeBadRequest))
}

func TestResetHonorsLeadTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		votingDate string
		wantErr    bool
	}{
		{"voting day itself", "2026-03-10", true},
		{"one day out", "2026-03-11", true},
		{"two days out", "2026-03-12", true},
		{"three days out", "2026-03-13", false},
		{"well ahead", "2026-04-01", false},
		{"date already passed", "2026-03-01", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(NewMemoryStore())
			require.NoError(t, r.Bind(ctx, "v1", "fp-1"))

			d, err := election.ParseDate(tt.votingDate)
			require.NoError(t, err)

			err = r.Reset(ctx, "v1", &d, now)
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
				return
			}
			require.NoError(t, err)

			ok, verr := r.Verify(ctx, "v1", "fp-1")
			require.NoError(t, verr)
			assert.False(t, ok, "reset clears the binding")

			require.NoError(t, r.Bind(ctx, "v1", "fp-2"), "the voter can bind a new device after reset")
		})
	}
}

func TestResetWithoutDateAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())
	require.NoError(t, r.Bind(ctx, "v1", "fp-1"))

	require.NoError(t, r.Reset(ctx, "v1", nil, time.Now()))
}

func TestResetUnboundVoter(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	err := r.Reset(ctx, "v1", nil, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
