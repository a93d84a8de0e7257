package workflow

import (
	"context"
	"fmt"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/pagination"
)

// FindingStore is the persistence contract the workflow service needs.
// ApplyTransition must update the finding status and append the history
// entry in one atomic unit, and must fail with a conflict error when the
// finding is no longer in the expected from status.
type FindingStore interface {
	GetStatus(ctx context.Context, findingID shared.ID) (vulnerability.Status, error)
	ApplyTransition(ctx context.Context, findingID shared.ID, from, to vulnerability.Status, entry *HistoryEntry) error
	ListHistory(ctx context.Context, findingID shared.ID, page pagination.Pagination) (pagination.Result[*HistoryEntry], error)
}

// Service executes validated status transitions.
type Service struct {
	engine *Engine
	store  FindingStore
	log    *logger.Logger
}

// NewService creates a new workflow service.
func NewService(engine *Engine, store FindingStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{engine: engine, store: store, log: log.With("service", "workflow")}
}

// Engine exposes the underlying transition engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// TransitionInput carries the requested transition.
type TransitionInput struct {
	To       vulnerability.Status
	Comment  string
	Evidence map[string]any
}

// Transition validates and applies a single status transition. The
// status update and the history append happen in one atomic unit; on any
// validation failure nothing is written.
func (s *Service) Transition(ctx context.Context, findingID shared.ID, actor Actor, in TransitionInput, role Role) (*HistoryEntry, error) {
	if !in.To.IsValid() {
		return nil, fmt.Errorf("%w: invalid target status %q", shared.ErrValidation, in.To)
	}

	current, err := s.store.GetStatus(ctx, findingID)
	if err != nil {
		return nil, err
	}

	result := s.engine.Validate(current, in.To, role)
	switch result.Outcome {
	case OutcomeNoEdge:
		return nil, fmt.Errorf("%w: no transition from %s to %s", shared.ErrValidation, current, in.To)
	case OutcomeRoleInsufficient:
		return nil, fmt.Errorf("%w: transition %s to %s requires role %s", shared.ErrForbidden, current, in.To, result.RequiredRole)
	}

	entry, err := NewHistoryEntry(findingID, current, in.To, actor, in.Comment, in.Evidence)
	if err != nil {
		return nil, err
	}

	if err := s.store.ApplyTransition(ctx, findingID, current, in.To, entry); err != nil {
		return nil, err
	}

	s.log.Info("finding transitioned",
		"finding_id", findingID.String(),
		"from", current.String(),
		"to", in.To.String(),
		"actor", actor.Name,
	)

	return entry, nil
}

// BulkFailure records why one finding in a bulk transition failed.
type BulkFailure struct {
	FindingID shared.ID `json:"finding_id"`
	Reason    string    `json:"reason"`
}

// BulkResult is the partial-success report of a bulk transition.
type BulkResult struct {
	Succeeded []shared.ID   `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkTransition applies the transition to each finding independently.
// One finding's failure never aborts the batch; callers get a per-id
// report instead.
func (s *Service) BulkTransition(ctx context.Context, findingIDs []shared.ID, actor Actor, in TransitionInput, role Role) *BulkResult {
	result := &BulkResult{
		Succeeded: make([]shared.ID, 0, len(findingIDs)),
		Failed:    make([]BulkFailure, 0),
	}

	for _, id := range findingIDs {
		if _, err := s.Transition(ctx, id, actor, in, role); err != nil {
			result.Failed = append(result.Failed, BulkFailure{FindingID: id, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	return result
}

// AvailableTransitions returns the legal target statuses for a finding's
// current status and an actor role.
func (s *Service) AvailableTransitions(ctx context.Context, findingID shared.ID, role Role) (vulnerability.Status, []vulnerability.Status, error) {
	current, err := s.store.GetStatus(ctx, findingID)
	if err != nil {
		return "", nil, err
	}
	return current, s.engine.AvailableTransitions(current, role), nil
}

// History returns the append-only transition history of a finding.
func (s *Service) History(ctx context.Context, findingID shared.ID, page pagination.Pagination) (pagination.Result[*HistoryEntry], error) {
	return s.store.ListHistory(ctx, findingID, page)
}
