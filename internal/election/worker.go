package election

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agora/internal/audit"
	"agora/internal/platform/metrics"
)

// Worker drives the automatic lifecycle: on every tick it re-evaluates each
// auto-managed election against the clock and applies whatever transitions
// have become due. Missed ticks are harmless because the evaluation looks at
// absolute time, not at edges.
type Worker struct {
	store    Store
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewWorker(store Store, auditor *audit.Service, m *metrics.Metrics, logger *slog.Logger, interval time.Duration, loc *time.Location) *Worker {
	if loc == nil {
		loc = time.Local
	}
	return &Worker{
		store:    store,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
		interval: interval,
		loc:      loc,
		now:      time.Now,
	}
}

// Run ticks until the context is canceled. An evaluation pass runs immediately
// on start so a restart does not wait a full interval to catch up.
func (w *Worker) Run(ctx context.Context) error {
	w.Tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick evaluates one pass. Exported so an admin endpoint or test can force an
// evaluation without waiting for the ticker.
func (w *Worker) Tick(ctx context.Context) {
	elections, err := w.store.ListAutoManaged(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "lifecycle scan failed", "error", err)
		return
	}

	now := w.now().In(w.loc)
	for _, e := range elections {
		w.evaluate(ctx, e.ID, now)
	}
}

func (w *Worker) evaluate(ctx context.Context, electionID uuid.UUID, now time.Time) {
	var fired []Transition
	err := w.store.UpdateSerialized(ctx, electionID, func(e *Election) error {
		// Re-evaluate against the freshly locked row: another replica may
		// already have applied the transition.
		fired = e.EvaluateTransitions(now)
		return nil
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "lifecycle evaluation failed", "election_id", electionID, "error", err)
		return
	}

	for _, t := range fired {
		if w.metrics != nil {
			w.metrics.LifecycleTransitions.WithLabelValues(string(t)).Inc()
		}
		if err := w.auditor.Record(ctx, electionID, nil, transitionAction(t), map[string]string{
			"trigger": "auto",
		}); err != nil {
			w.logger.ErrorContext(ctx, "audit write failed after transition",
				"election_id", electionID, "transition", t, "error", err)
		}
		w.logger.InfoContext(ctx, "election transition", "election_id", electionID, "transition", t)
	}
}

func transitionAction(t Transition) audit.Action {
	switch t {
	case TransitionOpened:
		return audit.ActionBallotOpened
	case TransitionClosed:
		return audit.ActionBallotClosed
	default:
		return audit.ActionResultsPublished
	}
}
