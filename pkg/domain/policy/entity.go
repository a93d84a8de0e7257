package policy

import (
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Policy is a named, prioritized license rule list owned by an
// organization. At most one policy per organization is the default.
type Policy struct {
	ID           shared.ID
	Name         string
	Organization string
	IsDefault    bool
	CreatedAt    time.Time
}

// NewPolicy creates a new policy.
func NewPolicy(name, organization string, isDefault bool) (*Policy, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: policy name is required", shared.ErrValidation)
	}
	if organization == "" {
		return nil, fmt.Errorf("%w: organization is required", shared.ErrValidation)
	}

	return &Policy{
		ID:           shared.NewID(),
		Name:         name,
		Organization: organization,
		IsDefault:    isDefault,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
