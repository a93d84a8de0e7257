// Package handler contains the HTTP handlers for the scan ingestion,
// finding workflow and license policy APIs.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vulnwatch/api/pkg/apierror"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/workflow"
	"github.com/vulnwatch/api/pkg/pagination"
	"github.com/vulnwatch/api/pkg/validator"
)

// Actor attribution headers. Authentication happens upstream (gateway
// or reverse proxy); the API trusts these headers for attribution and
// role gating.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
)

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseIDParam parses a UUID URL parameter.
func parseIDParam(r *http.Request, name string) (shared.ID, error) {
	raw := chi.URLParam(r, name)
	id, err := shared.IDFromString(raw)
	if err != nil {
		return shared.ID{}, err
	}
	return id, nil
}

// parsePagination reads page and per_page query parameters.
func parsePagination(r *http.Request) pagination.Pagination {
	page := parseQueryInt(r.URL.Query().Get("page"), 1)
	perPage := parseQueryInt(r.URL.Query().Get("per_page"), 20)
	return pagination.New(page, perPage)
}

// parseQueryInt parses a query parameter as an integer.
// Returns defaultVal if the input is empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// actorFromRequest builds the workflow actor from attribution headers.
func actorFromRequest(r *http.Request) workflow.Actor {
	actor := workflow.Actor{Name: r.Header.Get(HeaderActorName)}
	if actor.Name == "" {
		actor.Name = "anonymous"
	}
	if raw := r.Header.Get(HeaderActorID); raw != "" {
		if id, err := shared.IDFromString(raw); err == nil {
			actor.ID = &id
		}
	}
	return actor
}

// roleFromRequest reads the actor role header. Empty means no role
// gating is applied.
func roleFromRequest(r *http.Request) workflow.Role {
	return workflow.Role(r.Header.Get(HeaderActorRole))
}

// handleValidationError writes a validation error response with
// per-field details when available.
func handleValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		apierror.ValidationFailed("Validation failed", verrs).WriteJSON(w)
		return
	}
	apierror.BadRequest(err.Error()).WriteJSON(w)
}
