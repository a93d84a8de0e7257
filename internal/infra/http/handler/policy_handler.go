package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vulnwatch/api/pkg/apierror"
	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/policy"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/validator"
)

// PolicyHandler handles license policy management and evaluation.
type PolicyHandler struct {
	service   *policy.Service
	policies  policy.Repository
	validator *validator.Validator
	logger    *logger.Logger
}

// NewPolicyHandler creates a new PolicyHandler.
func NewPolicyHandler(service *policy.Service, policies policy.Repository, v *validator.Validator, log *logger.Logger) *PolicyHandler {
	return &PolicyHandler{
		service:   service,
		policies:  policies,
		validator: v,
		logger:    log.With("handler", "policy"),
	}
}

// CreatePolicyRequest represents the request body for creating a policy.
type CreatePolicyRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Organization string `json:"organization" validate:"required,min=1,max=255"`
	IsDefault    bool   `json:"is_default"`
}

// PolicyResponse represents a policy.
type PolicyResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
}

// Create handles POST /api/v1/policies.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	p, err := policy.NewPolicy(req.Name, req.Organization, req.IsDefault)
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	if err := h.policies.Create(r.Context(), p); err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toPolicyResponse(p))
}

// Get handles GET /api/v1/policies/{id}.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid policy ID").WriteJSON(w)
		return
	}

	p, err := h.policies.GetByID(r.Context(), id)
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPolicyResponse(p))
}

// CreateRuleRequest represents the request body for adding a rule.
type CreateRuleRequest struct {
	Priority int    `json:"priority" validate:"min=0,max=10000"`
	Kind     string `json:"kind" validate:"required,oneof=specific_license classification unknown_license"`
	Action   string `json:"action" validate:"required,policy_action"`

	// LicenseName is required for specific_license rules.
	LicenseName string `json:"license_name" validate:"max=255"`
	// Classification is required for classification rules.
	Classification string `json:"classification" validate:"omitempty,license_classification"`
}

// RuleResponse represents a policy rule.
type RuleResponse struct {
	ID             string    `json:"id"`
	PolicyID       string    `json:"policy_id"`
	Priority       int       `json:"priority"`
	Kind           string    `json:"kind"`
	Action         string    `json:"action"`
	LicenseName    string    `json:"license_name,omitempty"`
	Classification string    `json:"classification,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateRule handles POST /api/v1/policies/{id}/rules.
func (h *PolicyHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid policy ID").WriteJSON(w)
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	// Existence check so a bad policy id yields 404, not an orphan row.
	if _, err := h.policies.GetByID(r.Context(), policyID); err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	var rule *policy.Rule
	switch policy.MatchKind(req.Kind) {
	case policy.MatchSpecificLicense:
		rule, err = policy.NewSpecificLicenseRule(policyID, req.Priority, req.LicenseName, policy.Action(req.Action))
	case policy.MatchClassification:
		rule, err = policy.NewClassificationRule(policyID, req.Priority, license.Classification(req.Classification), policy.Action(req.Action))
	case policy.MatchUnknownLicense:
		rule, err = policy.NewUnknownLicenseRule(policyID, req.Priority, policy.Action(req.Action))
	default:
		apierror.BadRequest("Unknown rule kind: " + req.Kind).WriteJSON(w)
		return
	}
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	if err := h.policies.CreateRule(r.Context(), rule); err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toRuleResponse(rule))
}

// ListRules handles GET /api/v1/policies/{id}/rules.
func (h *PolicyHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	policyID, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid policy ID").WriteJSON(w)
		return
	}

	if _, err := h.policies.GetByID(r.Context(), policyID); err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	rules, err := h.policies.ListRules(r.Context(), policyID)
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	responses := make([]RuleResponse, len(rules))
	for i, rule := range rules {
		responses[i] = toRuleResponse(rule)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"data": responses})
}

// EvaluateRequest optionally pins the evaluation to a specific policy.
// Without it the organization's default policy applies.
type EvaluateRequest struct {
	PolicyID string `json:"policy_id" validate:"omitempty,uuid"`
}

// Evaluate handles POST /api/v1/scans/{id}/policy-evaluation.
func (h *PolicyHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	scanID, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid scan ID").WriteJSON(w)
		return
	}

	// The body is optional.
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	var policyID *shared.ID
	if req.PolicyID != "" {
		id, err := shared.IDFromString(req.PolicyID)
		if err != nil {
			apierror.BadRequest("Invalid policy ID").WriteJSON(w)
			return
		}
		policyID = &id
	}

	evaluation, err := h.service.Evaluate(r.Context(), scanID, policyID)
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, evaluation)
}

func toPolicyResponse(p *policy.Policy) PolicyResponse {
	return PolicyResponse{
		ID:           p.ID.String(),
		Name:         p.Name,
		Organization: p.Organization,
		IsDefault:    p.IsDefault,
		CreatedAt:    p.CreatedAt,
	}
}

func toRuleResponse(rule *policy.Rule) RuleResponse {
	return RuleResponse{
		ID:             rule.ID.String(),
		PolicyID:       rule.PolicyID.String(),
		Priority:       rule.Priority,
		Kind:           string(rule.Kind),
		Action:         rule.Action.String(),
		LicenseName:    rule.LicenseName,
		Classification: rule.Classification.String(),
		CreatedAt:      rule.CreatedAt,
	}
}
