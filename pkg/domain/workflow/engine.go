// Package workflow implements the finite state machine governing finding
// status transitions, with role-gated edges sourced from configuration.
package workflow

import (
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
)

// Outcome classifies the result of validating a transition.
type Outcome string

const (
	// OutcomeAllowed means the transition is legal for the actor.
	OutcomeAllowed Outcome = "allowed"
	// OutcomeNoEdge means no edge connects the two statuses.
	OutcomeNoEdge Outcome = "no_edge"
	// OutcomeRoleInsufficient means the edge exists but the actor's role
	// does not meet its requirement.
	OutcomeRoleInsufficient Outcome = "role_insufficient"
)

// ValidationResult is the structured outcome of a transition check.
// Callers use the distinction between no-edge and role-insufficient to
// render 400 vs 403 semantics.
type ValidationResult struct {
	Outcome      Outcome
	RequiredRole Role
}

// Allowed reports whether the transition may proceed.
func (r ValidationResult) Allowed() bool {
	return r.Outcome == OutcomeAllowed
}

// Engine evaluates transitions against a configured edge set, falling
// back to the compiled-in adjacency table when no configuration exists.
type Engine struct {
	cfg *Config
}

// NewEngine creates an engine. cfg may be nil, in which case the static
// fallback table applies and roles are not checked.
func NewEngine(cfg *Config) *Engine {
	if cfg != nil && len(cfg.Edges) == 0 {
		cfg = nil
	}
	return &Engine{cfg: cfg}
}

// Validate checks whether from -> to is legal for an actor with the
// given role. An empty role belongs to a system or automated actor and
// bypasses the role hierarchy check, never the edge-existence check.
func (e *Engine) Validate(from, to vulnerability.Status, role Role) ValidationResult {
	if e.cfg != nil {
		for _, edge := range e.cfg.Edges {
			if edge.From != from || edge.To != to {
				continue
			}
			if role != "" && !role.Meets(edge.RequiredRole) {
				return ValidationResult{Outcome: OutcomeRoleInsufficient, RequiredRole: edge.RequiredRole}
			}
			return ValidationResult{Outcome: OutcomeAllowed, RequiredRole: edge.RequiredRole}
		}
		return ValidationResult{Outcome: OutcomeNoEdge}
	}

	for _, target := range fallbackTransitions[from] {
		if target == to {
			return ValidationResult{Outcome: OutcomeAllowed}
		}
	}
	return ValidationResult{Outcome: OutcomeNoEdge}
}

// AvailableTransitions returns the statuses reachable from the given
// status by an actor with the given role.
func (e *Engine) AvailableTransitions(from vulnerability.Status, role Role) []vulnerability.Status {
	var targets []vulnerability.Status

	if e.cfg != nil {
		for _, edge := range e.cfg.Edges {
			if edge.From != from {
				continue
			}
			if role != "" && !role.Meets(edge.RequiredRole) {
				continue
			}
			targets = append(targets, edge.To)
		}
		return targets
	}

	targets = append(targets, fallbackTransitions[from]...)
	return targets
}

// StateMeta returns display metadata for a status. Falls back to a bare
// label when the configuration carries none.
func (e *Engine) StateMeta(s vulnerability.Status) StateMeta {
	if e.cfg != nil {
		if meta, ok := e.cfg.States[s]; ok {
			return meta
		}
	}
	if meta, ok := DefaultConfig().States[s]; ok {
		return meta
	}
	return StateMeta{Label: s.String()}
}
