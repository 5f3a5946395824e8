// Package httpapi exposes the voting engine over HTTP: public election
// reads, the authenticated cast endpoint, and the admin surface. Handlers
// translate between wire DTOs and domain calls; all decisions live in the
// services.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"agora/internal/audit"
	"agora/internal/ballot"
	"agora/internal/device"
	"agora/internal/election"
	"agora/internal/platform/ratelimit"
	"agora/pkg/platform/middleware/auth"
	devicemw "agora/pkg/platform/middleware/device"
	"agora/pkg/requestcontext"
)

// Deps carries the wired services into the router.
type Deps struct {
	Logger    *slog.Logger
	Validator *auth.Validator

	Ballots   *ballot.Service
	Elections *election.Service
	Devices   *device.Registry
	Auditor   *audit.Service

	Limiter  ratelimit.Limiter
	Location *time.Location

	MetricsHandler http.Handler

	// CastLimit caps vote attempts per voter per CastPeriod. Zero disables
	// throttling (tests).
	CastLimit  int
	CastPeriod time.Duration
}

// NewRouter assembles the middleware chain and the route tree.
func NewRouter(d Deps) http.Handler {
	if d.Location == nil {
		d.Location = time.Local
	}
	h := &handler{deps: d}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestContext(d.Location))
	r.Use(chimw.Recoverer)
	r.Use(devicemw.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/elections", h.listElections)
		r.Get("/elections/{electionID}", h.getElection)
		r.Get("/elections/{electionID}/status", h.votingStatus)
		r.Get("/elections/{electionID}/results", h.publicResults)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireVoter(d.Validator, d.Logger))
			r.Post("/elections/{electionID}/votes", h.castVote)
			r.Get("/receipts/{token}", h.receipt)
			r.Post("/device/bind", h.bindDevice)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(d.Validator, d.Logger))

			r.Post("/elections", h.createElection)
			r.Delete("/elections/{electionID}", h.deleteElection)
			r.Post("/elections/{electionID}/positions", h.addPosition)
			r.Post("/elections/{electionID}/candidates", h.addCandidate)
			r.Post("/elections/{electionID}/open", h.command(h.deps.Elections.Open))
			r.Post("/elections/{electionID}/close", h.command(h.deps.Elections.Close))
			r.Post("/elections/{electionID}/publish", h.command(h.deps.Elections.PublishResults))
			r.Post("/elections/{electionID}/archive", h.command(h.deps.Elections.Archive))
			r.Post("/elections/{electionID}/pause", h.pauseElection)
			r.Post("/elections/{electionID}/resume", h.command(h.deps.Elections.Resume))
			r.Get("/elections/{electionID}/results", h.adminResults)
			r.Get("/elections/{electionID}/audit", h.auditTrail)
			r.Get("/elections/{electionID}/audit/verify", h.auditVerify)

			r.Delete("/votes/{voteID}", h.invalidateVote)
			r.Get("/votes/{voteID}/verify", h.verifyVote)

			r.Delete("/devices/{voterID}", h.resetDevice)
		})
	})

	return r
}

type handler struct {
	deps Deps
}

// requestContext pins one instant per request in the election's timezone and
// copies chi's correlation ID into the transport-independent context, so
// every window check and audit entry of a request agrees on time and ID.
func requestContext(loc *time.Location) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = requestcontext.WithTime(ctx, time.Now().In(loc))
			if reqID := chimw.GetReqID(ctx); reqID != "" {
				ctx = requestcontext.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
