package election

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/audit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerTickDrivesLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	auditor := audit.NewService(audit.NewMemoryStore())

	e := autoManaged(t)
	e.ID = uuid.New()
	require.NoError(t, store.CreateElection(ctx, e))

	w := NewWorker(store, auditor, nil, discardLogger(), time.Second, time.UTC)

	// Before the window: nothing moves.
	w.now = func() time.Time { return at(t, "2026-03-10", "07:00") }
	w.Tick(ctx)
	got, err := store.GetElection(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	// Inside the window: opens.
	w.now = func() time.Time { return at(t, "2026-03-10", "09:00") }
	w.Tick(ctx)
	got, err = store.GetElection(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	// Past the window: closes and publishes.
	w.now = func() time.Time { return at(t, "2026-03-10", "18:00") }
	w.Tick(ctx)
	got, err = store.GetElection(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.False(t, got.AllowVoting)
	assert.True(t, got.ResultsPublished)

	trail, err := auditor.Trail(ctx, e.ID, audit.Filter{})
	require.NoError(t, err)
	var actions []audit.Action
	for _, entry := range trail {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []audit.Action{
		audit.ActionBallotOpened,
		audit.ActionBallotClosed,
		audit.ActionResultsPublished,
	}, actions)
}

func TestWorkerTickIsIdempotentAcrossTicks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	auditor := audit.NewService(audit.NewMemoryStore())

	e := autoManaged(t)
	e.ID = uuid.New()
	require.NoError(t, store.CreateElection(ctx, e))

	w := NewWorker(store, auditor, nil, discardLogger(), time.Second, time.UTC)
	w.now = func() time.Time { return at(t, "2026-03-10", "09:00") }

	w.Tick(ctx)
	w.Tick(ctx)
	w.Tick(ctx)

	trail, err := auditor.Trail(ctx, e.ID, audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, trail, 1, "re-evaluating an opened election must not re-fire the transition")
}
