package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/policy"
	"github.com/vulnwatch/api/pkg/domain/shared"
)

// PolicyRepository implements policy.Repository using PostgreSQL.
type PolicyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(db *DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetByID retrieves a policy by its ID.
func (r *PolicyRepository) GetByID(ctx context.Context, id shared.ID) (*policy.Policy, error) {
	query := `
		SELECT id, name, organization, is_default, created_at
		FROM policies
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id.String())
	p, err := r.scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: policy %s", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// GetDefaultForOrganization retrieves the organization's default policy.
func (r *PolicyRepository) GetDefaultForOrganization(ctx context.Context, organization string) (*policy.Policy, error) {
	query := `
		SELECT id, name, organization, is_default, created_at
		FROM policies
		WHERE organization = $1 AND is_default = TRUE
	`

	row := r.db.QueryRowContext(ctx, query, organization)
	p, err := r.scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: default policy for organization %s", shared.ErrNotFound, organization)
		}
		return nil, err
	}
	return p, nil
}

// Create persists a policy. A partial unique index guards the one
// default policy per organization invariant.
func (r *PolicyRepository) Create(ctx context.Context, p *policy.Policy) error {
	query := `
		INSERT INTO policies (id, name, organization, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID.String(),
		p.Name,
		p.Organization,
		p.IsDefault,
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: policy %s for organization %s", shared.ErrAlreadyExists, p.Name, p.Organization)
		}
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

// CreateRule persists a rule.
func (r *PolicyRepository) CreateRule(ctx context.Context, rule *policy.Rule) error {
	query := `
		INSERT INTO policy_rules (
			id, policy_id, priority, kind, action,
			license_name, classification, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID.String(),
		rule.PolicyID.String(),
		rule.Priority,
		string(rule.Kind),
		rule.Action.String(),
		nullString(rule.LicenseName),
		nullString(rule.Classification.String()),
		rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create policy rule: %w", err)
	}

	return nil
}

// ListRules returns the rules of a policy ordered by priority.
func (r *PolicyRepository) ListRules(ctx context.Context, policyID shared.ID) ([]*policy.Rule, error) {
	query := `
		SELECT id, policy_id, priority, kind, action,
		       license_name, classification, created_at
		FROM policy_rules
		WHERE policy_id = $1
		ORDER BY priority, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, policyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list policy rules: %w", err)
	}
	defer rows.Close()

	var rules []*policy.Rule
	for rows.Next() {
		var (
			rule           policy.Rule
			idStr          string
			policyIDStr    string
			kind           string
			action         string
			licenseName    sql.NullString
			classification sql.NullString
		)

		err := rows.Scan(
			&idStr, &policyIDStr, &rule.Priority, &kind, &action,
			&licenseName, &classification, &rule.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy rule: %w", err)
		}

		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rule id: %w", err)
		}
		pid, err := shared.IDFromString(policyIDStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy id: %w", err)
		}

		rule.ID = id
		rule.PolicyID = pid
		rule.Kind = policy.MatchKind(kind)
		rule.Action = policy.Action(action)
		rule.LicenseName = nullStringValue(licenseName)
		rule.Classification = license.Classification(nullStringValue(classification))

		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

func (r *PolicyRepository) scanPolicy(row *sql.Row) (*policy.Policy, error) {
	var (
		p     policy.Policy
		idStr string
	)

	err := row.Scan(&idStr, &p.Name, &p.Organization, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy id: %w", err)
	}
	p.ID = id

	return &p, nil
}
