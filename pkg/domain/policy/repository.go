package policy

import (
	"context"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Repository persists policies and their rules.
type Repository interface {
	// GetByID returns a policy by id.
	GetByID(ctx context.Context, id shared.ID) (*Policy, error)

	// GetDefaultForOrganization returns the organization's default
	// policy, or a not-found error when none is configured.
	GetDefaultForOrganization(ctx context.Context, organization string) (*Policy, error)

	// Create persists a policy.
	Create(ctx context.Context, p *Policy) error

	// CreateRule persists a rule.
	CreateRule(ctx context.Context, r *Rule) error

	// ListRules returns the rules of a policy ordered by priority.
	ListRules(ctx context.Context, policyID shared.ID) ([]*Rule, error)
}
