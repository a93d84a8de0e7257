// Package project contains the minimal project reference used by scan
// ingestion. Full project management lives outside this service.
package project

import (
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Project identifies a scannable codebase or artifact lineage within an
// organization. Fingerprint-based reconciliation is scoped to a single
// project.
type Project struct {
	ID           shared.ID
	Name         string
	Organization string
	CreatedAt    time.Time
}

// NewProject creates a new project reference.
func NewProject(name, organization string) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", shared.ErrValidation)
	}
	if organization == "" {
		return nil, fmt.Errorf("%w: organization is required", shared.ErrValidation)
	}

	return &Project{
		ID:           shared.NewID(),
		Name:         name,
		Organization: organization,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
