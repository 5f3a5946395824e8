package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"agora/internal/election"
	dErrors "agora/pkg/domain-errors"
)

type electionResponse struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Scope            election.Scope  `json:"scope"`
	County           string          `json:"county,omitempty"`
	Description      string          `json:"description,omitempty"`
	VotingDate       string          `json:"voting_date,omitempty"`
	StartTime        string          `json:"start_time"`
	EndTime          string          `json:"end_time"`
	Status           election.Status `json:"status"`
	AllowVoting      bool            `json:"allow_voting"`
	ResultsPublished bool            `json:"results_published"`
	EmergencyPause   bool            `json:"emergency_pause"`
	PauseReason      string          `json:"pause_reason,omitempty"`
	EligibleVoters   int             `json:"eligible_voters"`
	VotesCast        int             `json:"votes_cast"`
}

func toElectionResponse(e *election.Election) electionResponse {
	resp := electionResponse{
		ID:               e.ID,
		Name:             e.Name,
		Scope:            e.Scope,
		County:           e.County,
		Description:      e.Description,
		StartTime:        e.StartTime.String(),
		EndTime:          e.EndTime.String(),
		Status:           e.EffectiveStatus(),
		AllowVoting:      e.AllowVoting,
		ResultsPublished: e.ResultsPublished,
		EmergencyPause:   e.EmergencyPause,
		PauseReason:      e.PauseReason,
		EligibleVoters:   e.EligibleVoterCount,
		VotesCast:        e.VotesCastCount,
	}
	if e.VotingDate != nil {
		resp.VotingDate = e.VotingDate.String()
	}
	return resp
}

func (h *handler) listElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.deps.Elections.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]electionResponse, 0, len(elections))
	for _, e := range elections {
		out = append(out, toElectionResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getElection(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.deps.Elections.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toElectionResponse(e))
}

func (h *handler) votingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.deps.Elections.VotingStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type candidateResult struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	VoteCount int       `json:"vote_count"`
}

type positionResult struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Candidates []candidateResult `json:"candidates"`
}

type resultsResponse struct {
	ElectionID       uuid.UUID        `json:"election_id"`
	ResultsPublished bool             `json:"results_published"`
	VotesCast        int              `json:"votes_cast"`
	EligibleVoters   int              `json:"eligible_voters"`
	Positions        []positionResult `json:"positions"`
}

func toResultsResponse(res *election.Results) resultsResponse {
	out := resultsResponse{
		ElectionID:       res.ElectionID,
		ResultsPublished: res.ResultsPublished,
		VotesCast:        res.VotesCast,
		EligibleVoters:   res.EligibleVoters,
		Positions:        []positionResult{},
	}
	for _, p := range res.Positions {
		pr := positionResult{ID: p.Position.ID, Name: p.Position.Name}
		for _, c := range p.Candidates {
			pr.Candidates = append(pr.Candidates, candidateResult{
				ID:        c.ID,
				FullName:  c.FullName,
				VoteCount: c.VoteCount,
			})
		}
		out.Positions = append(out.Positions, pr)
	}
	return out
}

// publicResults serves tallies only after publication; before that the admin
// endpoint is the only window into the counts.
func (h *handler) publicResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.deps.Elections.Results(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.ResultsPublished {
		h.writeError(w, r, dErrors.New(dErrors.CodeForbidden, "results are not published yet"))
		return
	}
	writeJSON(w, http.StatusOK, toResultsResponse(res))
}

func (h *handler) adminResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.deps.Elections.Results(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultsResponse(res))
}

type createElectionRequest struct {
	Name        string `json:"name"`
	Scope       string `json:"scope"`
	County      string `json:"county"`
	Description string `json:"description"`
	VotingDate  string `json:"voting_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	AllowVoting bool   `json:"allow_voting"`
	AutoOpen    bool   `json:"auto_open"`
	AutoClose   bool   `json:"auto_close"`
	AutoPublish bool   `json:"auto_publish"`
}

func (h *handler) createElection(w http.ResponseWriter, r *http.Request) {
	var req createElectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	scope, err := election.ParseScope(req.Scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e := &election.Election{
		Name:        req.Name,
		Scope:       scope,
		County:      req.County,
		Description: req.Description,
		Status:      election.StatusPending,
		AllowVoting: req.AllowVoting,
		AutoOpen:    req.AutoOpen,
		AutoClose:   req.AutoClose,
		AutoPublish: req.AutoPublish,
	}
	if req.VotingDate != "" {
		d, err := election.ParseDate(req.VotingDate)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		e.VotingDate = &d
	}
	if req.StartTime != "" {
		if e.StartTime, err = election.ParseTimeOfDay(req.StartTime); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if req.EndTime != "" {
		if e.EndTime, err = election.ParseTimeOfDay(req.EndTime); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	if err := h.deps.Elections.Create(r.Context(), e); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toElectionResponse(e))
}

func (h *handler) deleteElection(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Elections.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addPositionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	MaxVotes    int    `json:"max_votes"`
}

func (h *handler) addPosition(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req addPositionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p := &election.Position{
		ElectionID:  electionID,
		Name:        req.Name,
		Description: req.Description,
		Order:       req.Order,
		MaxVotes:    req.MaxVotes,
		Active:      true,
	}
	if err := h.deps.Elections.AddPosition(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": p.ID})
}

type addCandidateRequest struct {
	PositionID uuid.UUID `json:"position_id"`
	FullName   string    `json:"full_name"`
	Order      int       `json:"order"`
}

func (h *handler) addCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req addCandidateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c := &election.Candidate{
		ElectionID: electionID,
		PositionID: req.PositionID,
		FullName:   req.FullName,
		Order:      req.Order,
		Active:     true,
	}
	if err := h.deps.Elections.AddCandidate(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": c.ID})
}

// command adapts the single-argument lifecycle operations to handlers.
func (h *handler) command(fn func(ctx context.Context, id uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "electionID")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := fn(r.Context(), id); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

func (h *handler) pauseElection(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "electionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Elections.Pause(r.Context(), id, req.Reason); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
