package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vulnwatch/api/pkg/domain/project"
	"github.com/vulnwatch/api/pkg/domain/shared"
)

// ProjectRepository implements project.Repository using PostgreSQL.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID retrieves a project by its ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id shared.ID) (*project.Project, error) {
	query := `
		SELECT id, name, organization, created_at
		FROM projects
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id.String())
	return r.scanProject(row)
}

// GetByNameAndOrg retrieves a project by its (name, organization) pair.
func (r *ProjectRepository) GetByNameAndOrg(ctx context.Context, name, organization string) (*project.Project, error) {
	query := `
		SELECT id, name, organization, created_at
		FROM projects
		WHERE name = $1 AND organization = $2
	`

	row := r.db.QueryRowContext(ctx, query, name, organization)
	return r.scanProject(row)
}

// Create persists a new project.
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	query := `
		INSERT INTO projects (id, name, organization, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID.String(),
		p.Name,
		p.Organization,
		p.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project %s/%s", shared.ErrAlreadyExists, p.Organization, p.Name)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *ProjectRepository) scanProject(row *sql.Row) (*project.Project, error) {
	var (
		p     project.Project
		idStr string
	)

	err := row.Scan(&idStr, &p.Name, &p.Organization, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project id: %w", err)
	}
	p.ID = id

	return &p, nil
}
