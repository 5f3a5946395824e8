package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agora/internal/audit"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"
)

type invalidateVoteRequest struct {
	Reason string `json:"reason"`
}

func (h *handler) invalidateVote(w http.ResponseWriter, r *http.Request) {
	voteID, err := pathUUID(r, "voteID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req invalidateVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Reason == "" {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "an invalidation reason is required"))
		return
	}
	if err := h.deps.Ballots.InvalidateVote(r.Context(), voteID, req.Reason); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) verifyVote(w http.ResponseWriter, r *http.Request) {
	voteID, err := pathUUID(r, "voteID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Ballots.VerifyVote(r.Context(), voteID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

type auditEntryResponse struct {
	ID        uuid.UUID         `json:"id"`
	VoteID    *uuid.UUID        `json:"vote_id,omitempty"`
	Action    audit.Action      `json:"action"`
	IPAddress string            `json:"ip_address,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	EntryHash string            `json:"entry_hash"`
}

func (h *handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filter := audit.Filter{Action: audit.Action(r.URL.Query().Get("action"))}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid since timestamp"))
			return
		}
		filter.Since = t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid until timestamp"))
			return
		}
		filter.Until = t
	}

	entries, err := h.deps.Auditor.Trail(r.Context(), electionID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID,
			VoteID:    e.VoteID,
			Action:    e.Action,
			IPAddress: e.IPAddress,
			Timestamp: e.Timestamp,
			Metadata:  e.Metadata,
			EntryHash: e.EntryHash,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) auditVerify(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Auditor.Verify(r.Context(), electionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"intact": true})
}

// resetDevice clears a voter's device binding after an approved request. The
// election_id query names the election whose voting date the lead-time rule
// is checked against.
func (h *handler) resetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voterID := chi.URLParam(r, "voterID")
	if voterID == "" {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "voter ID is required"))
		return
	}

	electionIDRaw := r.URL.Query().Get("election_id")
	if electionIDRaw == "" {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "election_id is required"))
		return
	}
	electionID, err := uuid.Parse(electionIDRaw)
	if err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid election_id"))
		return
	}
	e, err := h.deps.Elections.Get(ctx, electionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.deps.Devices.Reset(ctx, voterID, e.VotingDate, requestcontext.Now(ctx)); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Auditor.Record(ctx, e.ID, nil, audit.ActionDeviceReset, map[string]string{
		"voter_id": voterID,
	}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "audit write failed after device reset", "voter_id", voterID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
