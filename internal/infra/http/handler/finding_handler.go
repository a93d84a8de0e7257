package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vulnwatch/api/pkg/apierror"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/domain/workflow"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/validator"
)

// FindingHandler handles finding retrieval and workflow transitions.
type FindingHandler struct {
	workflowService *workflow.Service
	findings        vulnerability.FindingRepository
	validator       *validator.Validator
	logger          *logger.Logger
}

// NewFindingHandler creates a new FindingHandler.
func NewFindingHandler(
	workflowSvc *workflow.Service,
	findings vulnerability.FindingRepository,
	v *validator.Validator,
	log *logger.Logger,
) *FindingHandler {
	return &FindingHandler{
		workflowService: workflowSvc,
		findings:        findings,
		validator:       v,
		logger:          log.With("handler", "finding"),
	}
}

// Get handles GET /api/v1/findings/{id}.
func (h *FindingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid finding ID").WriteJSON(w)
		return
	}

	f, err := h.findings.GetByID(r.Context(), id)
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, toFindingResponse(f))
}

// TransitionRequest represents a status transition request.
type TransitionRequest struct {
	To       string         `json:"to" validate:"required,finding_status"`
	Comment  string         `json:"comment" validate:"max=2000"`
	Evidence map[string]any `json:"evidence"`
}

// HistoryEntryResponse represents one transition history record.
type HistoryEntryResponse struct {
	ID         string         `json:"id"`
	FindingID  string         `json:"finding_id"`
	FromStatus string         `json:"from_status"`
	ToStatus   string         `json:"to_status"`
	ActorID    *string        `json:"actor_id,omitempty"`
	ActorName  string         `json:"actor_name"`
	Comment    string         `json:"comment,omitempty"`
	Evidence   map[string]any `json:"evidence,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Transition handles POST /api/v1/findings/{id}/transitions.
func (h *FindingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid finding ID").WriteJSON(w)
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	entry, err := h.workflowService.Transition(r.Context(), id, actorFromRequest(r), workflow.TransitionInput{
		To:       vulnerability.Status(req.To),
		Comment:  req.Comment,
		Evidence: req.Evidence,
	}, roleFromRequest(r))
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, toHistoryEntryResponse(entry))
}

// BulkTransitionRequest represents a bulk status transition request.
type BulkTransitionRequest struct {
	FindingIDs []string       `json:"finding_ids" validate:"required,min=1,max=500,dive,uuid"`
	To         string         `json:"to" validate:"required,finding_status"`
	Comment    string         `json:"comment" validate:"max=2000"`
	Evidence   map[string]any `json:"evidence"`
}

// BulkTransition handles POST /api/v1/findings/transitions. Each
// finding is processed independently; the response reports per-id
// outcomes.
func (h *FindingHandler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	var req BulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	ids := make([]shared.ID, 0, len(req.FindingIDs))
	for _, raw := range req.FindingIDs {
		id, err := shared.IDFromString(raw)
		if err != nil {
			apierror.BadRequest("Invalid finding ID: " + raw).WriteJSON(w)
			return
		}
		ids = append(ids, id)
	}

	result := h.workflowService.BulkTransition(r.Context(), ids, actorFromRequest(r), workflow.TransitionInput{
		To:       vulnerability.Status(req.To),
		Comment:  req.Comment,
		Evidence: req.Evidence,
	}, roleFromRequest(r))

	writeJSONResponse(w, http.StatusOK, result)
}

// AvailableTransitionsResponse lists the legal target statuses for a
// finding given the caller's role.
type AvailableTransitionsResponse struct {
	FindingID     string   `json:"finding_id"`
	CurrentStatus string   `json:"current_status"`
	Available     []string `json:"available"`
}

// AvailableTransitions handles GET /api/v1/findings/{id}/transitions.
func (h *FindingHandler) AvailableTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid finding ID").WriteJSON(w)
		return
	}

	current, available, err := h.workflowService.AvailableTransitions(r.Context(), id, roleFromRequest(r))
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	targets := make([]string, len(available))
	for i, status := range available {
		targets[i] = status.String()
	}

	writeJSONResponse(w, http.StatusOK, AvailableTransitionsResponse{
		FindingID:     id.String(),
		CurrentStatus: current.String(),
		Available:     targets,
	})
}

// History handles GET /api/v1/findings/{id}/history.
func (h *FindingHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid finding ID").WriteJSON(w)
		return
	}

	result, err := h.workflowService.History(r.Context(), id, parsePagination(r))
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	entries := make([]HistoryEntryResponse, len(result.Data))
	for i, entry := range result.Data {
		entries[i] = toHistoryEntryResponse(entry)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"data":        entries,
		"total":       result.Total,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total_pages": result.TotalPages,
	})
}

func toHistoryEntryResponse(entry *workflow.HistoryEntry) HistoryEntryResponse {
	resp := HistoryEntryResponse{
		ID:         entry.ID.String(),
		FindingID:  entry.FindingID.String(),
		FromStatus: entry.FromStatus.String(),
		ToStatus:   entry.ToStatus.String(),
		ActorName:  entry.ActorName,
		Comment:    entry.Comment,
		Evidence:   entry.Evidence,
		CreatedAt:  entry.CreatedAt,
	}
	if entry.ActorID != nil {
		s := entry.ActorID.String()
		resp.ActorID = &s
	}
	return resp
}
