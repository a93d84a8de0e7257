package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vulnwatch/api/pkg/domain/scan"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/pagination"
)

// ScanRepository implements scan.Repository using PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create persists a new scan result, raw payload included.
func (r *ScanRepository) Create(ctx context.Context, s *scan.ScanResult) error {
	source, err := toJSONB(s.Source)
	if err != nil {
		return fmt.Errorf("failed to marshal source metadata: %w", err)
	}
	summary, err := toJSONB(s.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `
		INSERT INTO scans (
			id, project_id, artifact_name, artifact_type, artifact_digest,
			artifact_tag, tool_version, schema_version, source, raw_payload,
			summary, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		s.ID.String(),
		s.ProjectID.String(),
		s.ArtifactName,
		nullString(s.ArtifactType),
		nullString(s.ArtifactDigest),
		nullString(s.ArtifactTag),
		nullString(s.ToolVersion),
		s.SchemaVersion,
		source,
		s.RawPayload,
		summary,
		s.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: scan %s", shared.ErrAlreadyExists, s.ID)
		}
		return fmt.Errorf("failed to create scan: %w", err)
	}

	return nil
}

// GetByID retrieves a scan by its ID, raw payload included.
func (r *ScanRepository) GetByID(ctx context.Context, id shared.ID) (*scan.ScanResult, error) {
	query := `
		SELECT id, project_id, artifact_name, artifact_type, artifact_digest,
		       artifact_tag, tool_version, schema_version, source, raw_payload,
		       summary, created_at
		FROM scans
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id.String())
	s, err := r.scanScanResult(row, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: scan %s", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return s, nil
}

// ListByProject returns the project's scans, newest first. Raw payloads
// are not loaded.
func (r *ScanRepository) ListByProject(ctx context.Context, projectID shared.ID, page pagination.Pagination) (pagination.Result[*scan.ScanResult], error) {
	var empty pagination.Result[*scan.ScanResult]

	var total int64
	countQuery := `SELECT COUNT(*) FROM scans WHERE project_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, projectID.String()).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count scans: %w", err)
	}

	query := `
		SELECT id, project_id, artifact_name, artifact_type, artifact_digest,
		       artifact_tag, tool_version, schema_version, source,
		       summary, created_at
		FROM scans
		WHERE project_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, projectID.String(), page.Limit(), page.Offset())
	if err != nil {
		return empty, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []*scan.ScanResult
	for rows.Next() {
		s, err := r.scanScanResult(rows, false)
		if err != nil {
			return empty, err
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate scans: %w", err)
	}

	return pagination.NewResult(scans, total, page), nil
}

// UpdateSummary replaces the derived summary of a scan.
func (r *ScanRepository) UpdateSummary(ctx context.Context, id shared.ID, summary scan.Summary) error {
	data, err := toJSONB(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `UPDATE scans SET summary = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String(), data)
	if err != nil {
		return fmt.Errorf("failed to update scan summary: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: scan %s", shared.ErrNotFound, id)
	}

	return nil
}

// Delete removes a scan. Findings and license observations cascade at
// the schema level.
func (r *ScanRepository) Delete(ctx context.Context, id shared.ID) error {
	query := `DELETE FROM scans WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: scan %s", shared.ErrNotFound, id)
	}

	return nil
}

func (r *ScanRepository) scanScanResult(row rowScanner, withPayload bool) (*scan.ScanResult, error) {
	var (
		s            scan.ScanResult
		idStr        string
		projectIDStr string
		artifactType sql.NullString
		digest       sql.NullString
		tag          sql.NullString
		toolVersion  sql.NullString
		source       []byte
		summary      []byte
	)

	dest := []any{
		&idStr, &projectIDStr, &s.ArtifactName, &artifactType, &digest,
		&tag, &toolVersion, &s.SchemaVersion, &source,
	}
	if withPayload {
		dest = append(dest, &s.RawPayload)
	}
	dest = append(dest, &summary, &s.CreatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan scan result: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scan id: %w", err)
	}
	projectID, err := shared.IDFromString(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project id: %w", err)
	}

	s.ID = id
	s.ProjectID = projectID
	s.ArtifactType = nullStringValue(artifactType)
	s.ArtifactDigest = nullStringValue(digest)
	s.ArtifactTag = nullStringValue(tag)
	s.ToolVersion = nullStringValue(toolVersion)

	if err := fromJSONB(source, &s.Source); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source metadata: %w", err)
	}
	if err := fromJSONB(summary, &s.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &s, nil
}
