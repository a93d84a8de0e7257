package workflow

import (
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
)

// SystemActorName identifies automated transitions in history entries.
const SystemActorName = "system"

// Actor is whoever requests a transition: a human user or the system.
type Actor struct {
	ID   *shared.ID
	Name string
}

// SystemActor returns the synthetic actor used for automated transitions
// such as reconciliation.
func SystemActor() Actor {
	return Actor{Name: SystemActorName}
}

// IsSystem reports whether the actor is the synthetic system actor.
func (a Actor) IsSystem() bool {
	return a.ID == nil && a.Name == SystemActorName
}

// HistoryEntry is an append-only audit record of a status transition.
// Entries are never mutated or deleted.
type HistoryEntry struct {
	ID         shared.ID
	FindingID  shared.ID
	FromStatus vulnerability.Status
	ToStatus   vulnerability.Status
	ActorID    *shared.ID
	ActorName  string
	Comment    string
	Evidence   map[string]any
	CreatedAt  time.Time
}

// NewHistoryEntry creates a new history entry.
func NewHistoryEntry(findingID shared.ID, from, to vulnerability.Status, actor Actor, comment string, evidence map[string]any) (*HistoryEntry, error) {
	if findingID.IsZero() {
		return nil, fmt.Errorf("%w: finding ID is required", shared.ErrValidation)
	}
	if !from.IsValid() {
		return nil, fmt.Errorf("%w: invalid from status %q", shared.ErrValidation, from)
	}
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: invalid to status %q", shared.ErrValidation, to)
	}
	if actor.Name == "" {
		return nil, fmt.Errorf("%w: actor name is required", shared.ErrValidation)
	}

	return &HistoryEntry{
		ID:         shared.NewID(),
		FindingID:  findingID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Comment:    comment,
		Evidence:   evidence,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
