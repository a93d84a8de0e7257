package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
)

// CatalogRepository implements vulnerability.CatalogRepository using
// PostgreSQL.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Upsert inserts the catalog entry or updates its mutable metadata when
// the CVE id is already known. published_at keeps its first-seen value,
// created_at never moves. Returns the id of the row that now represents
// the CVE.
func (r *CatalogRepository) Upsert(ctx context.Context, v *vulnerability.Vulnerability) (shared.ID, error) {
	cweIDs, err := toJSONB(v.CWEIDs)
	if err != nil {
		return shared.ID{}, fmt.Errorf("failed to marshal cwe ids: %w", err)
	}
	references, err := toJSONB(v.References)
	if err != nil {
		return shared.ID{}, fmt.Errorf("failed to marshal references: %w", err)
	}

	query := `
		INSERT INTO vulnerabilities (
			id, cve_id, title, description, severity,
			cvss_score, cvss_vector, cwe_ids, reference_urls,
			published_at, last_modified_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (cve_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			severity = EXCLUDED.severity,
			cvss_score = EXCLUDED.cvss_score,
			cvss_vector = EXCLUDED.cvss_vector,
			cwe_ids = EXCLUDED.cwe_ids,
			reference_urls = EXCLUDED.reference_urls,
			published_at = COALESCE(vulnerabilities.published_at, EXCLUDED.published_at),
			last_modified_at = EXCLUDED.last_modified_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	var idStr string
	err = r.db.QueryRowContext(ctx, query,
		v.ID.String(),
		v.CVEID,
		nullString(v.Title),
		nullString(v.Description),
		v.Severity.String(),
		v.CVSSScore,
		nullString(v.CVSSVector),
		cweIDs,
		references,
		nullTime(v.PublishedAt),
		nullTime(v.LastModifiedAt),
		v.CreatedAt,
		v.UpdatedAt,
	).Scan(&idStr)
	if err != nil {
		return shared.ID{}, fmt.Errorf("failed to upsert vulnerability %s: %w", v.CVEID, err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return shared.ID{}, fmt.Errorf("failed to parse vulnerability id: %w", err)
	}

	return id, nil
}

// GetByCVEID retrieves a catalog entry by CVE id.
func (r *CatalogRepository) GetByCVEID(ctx context.Context, cveID string) (*vulnerability.Vulnerability, error) {
	query := `
		SELECT id, cve_id, title, description, severity,
		       cvss_score, cvss_vector, cwe_ids, reference_urls,
		       published_at, last_modified_at, created_at, updated_at
		FROM vulnerabilities
		WHERE cve_id = $1
	`

	var (
		v          vulnerability.Vulnerability
		idStr      string
		title      sql.NullString
		desc       sql.NullString
		severity   string
		cvssVector sql.NullString
		cweIDs     []byte
		references []byte
		published  sql.NullTime
		modified   sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, cveID).Scan(
		&idStr, &v.CVEID, &title, &desc, &severity,
		&v.CVSSScore, &cvssVector, &cweIDs, &references,
		&published, &modified, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: vulnerability %s", shared.ErrNotFound, cveID)
		}
		return nil, fmt.Errorf("failed to get vulnerability: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vulnerability id: %w", err)
	}
	v.ID = id
	v.Title = nullStringValue(title)
	v.Description = nullStringValue(desc)
	v.Severity = vulnerability.ParseSeverity(severity)
	v.CVSSVector = nullStringValue(cvssVector)
	v.PublishedAt = nullTimeValue(published)
	v.LastModifiedAt = nullTimeValue(modified)

	if err := fromJSONB(cweIDs, &v.CWEIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cwe ids: %w", err)
	}
	if err := fromJSONB(references, &v.References); err != nil {
		return nil, fmt.Errorf("failed to unmarshal references: %w", err)
	}

	return &v, nil
}
