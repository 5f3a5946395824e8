package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agora/internal/ballot"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"
)

type castVoteRequest struct {
	// Selections maps position ID to the chosen candidate ID.
	Selections map[uuid.UUID]uuid.UUID `json:"selections"`
}

func (h *handler) castVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voterID := requestcontext.VoterID(ctx)

	if h.deps.CastLimit > 0 {
		ok, err := h.deps.Limiter.Allow(ctx, "cast:"+voterID, h.deps.CastLimit, h.deps.CastPeriod)
		if err != nil {
			// A broken limiter must not take down voting; log and let the
			// request through.
			h.deps.Logger.WarnContext(ctx, "rate limiter unavailable", "error", err)
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:   "rate_limited",
				Message: "too many vote attempts, slow down",
			})
			return
		}
	}

	electionID, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req castVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	receipt, err := h.deps.Ballots.CastVote(ctx, voterID, electionID, ballot.Selections(req.Selections))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// receipt lets a voter confirm their ballot was recorded by presenting the
// anonymous token from the cast response. The response never includes the
// selections.
func (h *handler) receipt(w http.ResponseWriter, r *http.Request) {
	token, err := uuid.Parse(chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid receipt token"))
		return
	}
	v, err := h.deps.Ballots.Receipt(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// bindDevice registers the calling device as the voter's single voting
// device, using the fingerprint the middleware derived for this request.
func (h *handler) bindDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.deps.Devices.Bind(ctx, requestcontext.VoterID(ctx), requestcontext.DeviceFingerprint(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
