package project

import (
	"context"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Repository persists project references.
type Repository interface {
	// GetByID returns a project by id.
	GetByID(ctx context.Context, id shared.ID) (*Project, error)

	// GetByNameAndOrg returns a project by its (name, organization) pair.
	GetByNameAndOrg(ctx context.Context, name, organization string) (*Project, error)

	// Create persists a new project.
	Create(ctx context.Context, p *Project) error
}
