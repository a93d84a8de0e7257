package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/domain/workflow"
	"github.com/vulnwatch/api/pkg/pagination"
)

// FindingRepository implements vulnerability.FindingRepository and
// workflow.FindingStore using PostgreSQL. Both contracts live on the
// same type because transitions and ingestion write the same rows.
type FindingRepository struct {
	db *DB
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *DB) *FindingRepository {
	return &FindingRepository{db: db}
}

const findingColumns = `
	id, scan_id, vulnerability_id, cve_id,
	pkg_name, installed_version, fixed_version, pkg_path, layer, target,
	fingerprint, status, assignee_id, created_at, updated_at
`

// Upsert inserts the finding or, when a row with the same
// (scan_id, fingerprint) already exists, refreshes its location fields.
// Status and assignee are never touched on the conflict path.
func (r *FindingRepository) Upsert(ctx context.Context, f *vulnerability.Finding) (bool, error) {
	query := `
		INSERT INTO findings (` + findingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (scan_id, fingerprint) DO UPDATE SET
			fixed_version = EXCLUDED.fixed_version,
			pkg_path = EXCLUDED.pkg_path,
			layer = EXCLUDED.layer,
			target = EXCLUDED.target,
			updated_at = EXCLUDED.updated_at
		RETURNING id, status, (xmax = 0)
	`

	var (
		idStr    string
		status   string
		inserted bool
	)
	err := r.db.QueryRowContext(ctx, query,
		f.ID.String(),
		f.ScanID.String(),
		f.VulnerabilityID.String(),
		f.CVEID,
		f.PkgName,
		f.InstalledVersion,
		nullString(f.FixedVersion),
		nullString(f.PkgPath),
		nullString(f.Layer),
		nullString(f.Target),
		f.Fingerprint,
		f.Status.String(),
		nullIDPtr(f.AssigneeID),
		f.CreatedAt,
		f.UpdatedAt,
	).Scan(&idStr, &status, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert finding %s: %w", f.Fingerprint, err)
	}

	// On the conflict path the row keeps its original id and status;
	// reflect them back onto the entity.
	id, err := shared.IDFromString(idStr)
	if err != nil {
		return false, fmt.Errorf("failed to parse finding id: %w", err)
	}
	f.ID = id
	f.Status = vulnerability.Status(status)

	return inserted, nil
}

// GetByID retrieves a finding by its ID.
func (r *FindingRepository) GetByID(ctx context.Context, id shared.ID) (*vulnerability.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id.String())
	f, err := r.scanFinding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vulnerability.FindingNotFoundError(id)
		}
		return nil, err
	}
	return f, nil
}

// ListByScan returns the findings attached to a scan, ordered by CVE id
// for stable pagination.
func (r *FindingRepository) ListByScan(ctx context.Context, scanID shared.ID, page pagination.Pagination) (pagination.Result[*vulnerability.Finding], error) {
	var empty pagination.Result[*vulnerability.Finding]

	var total int64
	countQuery := `SELECT COUNT(*) FROM findings WHERE scan_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, scanID.String()).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count findings: %w", err)
	}

	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE scan_id = $1
		ORDER BY cve_id, pkg_name
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, scanID.String(), page.Limit(), page.Offset())
	if err != nil {
		return empty, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	findings, err := r.collectFindings(rows)
	if err != nil {
		return empty, err
	}

	return pagination.NewResult(findings, total, page), nil
}

// ListUnresolved returns findings in an unresolved status across all of
// the project's scans except excludeScanID.
func (r *FindingRepository) ListUnresolved(ctx context.Context, projectID, excludeScanID shared.ID) ([]*vulnerability.Finding, error) {
	query := `
		SELECT f.id, f.scan_id, f.vulnerability_id, f.cve_id,
		       f.pkg_name, f.installed_version, f.fixed_version, f.pkg_path, f.layer, f.target,
		       f.fingerprint, f.status, f.assignee_id, f.created_at, f.updated_at
		FROM findings f
		JOIN scans s ON s.id = f.scan_id
		WHERE s.project_id = $1
		  AND f.scan_id != $2
		  AND f.status = ANY($3)
	`

	rows, err := r.db.QueryContext(ctx, query,
		projectID.String(),
		excludeScanID.String(),
		statusStrings(vulnerability.UnresolvedStatuses()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved findings: %w", err)
	}
	defer rows.Close()

	return r.collectFindings(rows)
}

// CountBySeverity returns per-severity finding counts for a scan. The
// severity lives on the catalog entry, not the finding row.
func (r *FindingRepository) CountBySeverity(ctx context.Context, scanID shared.ID) (map[vulnerability.Severity]int, error) {
	query := `
		SELECT v.severity, COUNT(*)
		FROM findings f
		JOIN vulnerabilities v ON v.id = f.vulnerability_id
		WHERE f.scan_id = $1
		GROUP BY v.severity
	`

	rows, err := r.db.QueryContext(ctx, query, scanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count findings by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[vulnerability.Severity]int)
	for rows.Next() {
		var (
			severity string
			count    int
		)
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[vulnerability.ParseSeverity(severity)] = count
	}

	return counts, rows.Err()
}

// GetStatus returns the current status of a finding.
func (r *FindingRepository) GetStatus(ctx context.Context, findingID shared.ID) (vulnerability.Status, error) {
	query := `SELECT status FROM findings WHERE id = $1`

	var status string
	err := r.db.QueryRowContext(ctx, query, findingID.String()).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", vulnerability.FindingNotFoundError(findingID)
		}
		return "", fmt.Errorf("failed to get finding status: %w", err)
	}

	return vulnerability.Status(status), nil
}

// ApplyTransition updates the finding status and appends the history
// entry in one transaction. The status update is a compare-and-swap on
// the expected from status; a concurrent transition surfaces as a
// conflict error and nothing is written.
func (r *FindingRepository) ApplyTransition(ctx context.Context, findingID shared.ID, from, to vulnerability.Status, entry *workflow.HistoryEntry) error {
	evidence, err := toJSONB(entry.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		updateQuery := `
			UPDATE findings
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4
		`

		result, err := tx.ExecContext(ctx, updateQuery,
			to.String(),
			time.Now().UTC(),
			findingID.String(),
			from.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update finding status: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			var exists bool
			checkQuery := `SELECT EXISTS(SELECT 1 FROM findings WHERE id = $1)`
			if err := tx.QueryRowContext(ctx, checkQuery, findingID.String()).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check finding existence: %w", err)
			}
			if !exists {
				return vulnerability.FindingNotFoundError(findingID)
			}
			return vulnerability.StatusConflictError(findingID, from)
		}

		insertQuery := `
			INSERT INTO finding_history (
				id, finding_id, from_status, to_status,
				actor_id, actor_name, comment, evidence, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`

		_, err = tx.ExecContext(ctx, insertQuery,
			entry.ID.String(),
			entry.FindingID.String(),
			entry.FromStatus.String(),
			entry.ToStatus.String(),
			nullIDPtr(entry.ActorID),
			entry.ActorName,
			nullString(entry.Comment),
			evidence,
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}

		return nil
	})
}

// ListHistory returns the transition history of a finding, newest first.
func (r *FindingRepository) ListHistory(ctx context.Context, findingID shared.ID, page pagination.Pagination) (pagination.Result[*workflow.HistoryEntry], error) {
	var empty pagination.Result[*workflow.HistoryEntry]

	var total int64
	countQuery := `SELECT COUNT(*) FROM finding_history WHERE finding_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, findingID.String()).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count history entries: %w", err)
	}

	query := `
		SELECT id, finding_id, from_status, to_status,
		       actor_id, actor_name, comment, evidence, created_at
		FROM finding_history
		WHERE finding_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, findingID.String(), page.Limit(), page.Offset())
	if err != nil {
		return empty, fmt.Errorf("failed to list history entries: %w", err)
	}
	defer rows.Close()

	var entries []*workflow.HistoryEntry
	for rows.Next() {
		entry, err := r.scanHistoryEntry(rows)
		if err != nil {
			return empty, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate history entries: %w", err)
	}

	return pagination.NewResult(entries, total, page), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *FindingRepository) scanFinding(row rowScanner) (*vulnerability.Finding, error) {
	var (
		f            vulnerability.Finding
		idStr        string
		scanIDStr    string
		vulnIDStr    string
		fixedVersion sql.NullString
		pkgPath      sql.NullString
		layer        sql.NullString
		target       sql.NullString
		status       string
		assigneeID   sql.NullString
	)

	err := row.Scan(
		&idStr, &scanIDStr, &vulnIDStr, &f.CVEID,
		&f.PkgName, &f.InstalledVersion, &fixedVersion, &pkgPath, &layer, &target,
		&f.Fingerprint, &status, &assigneeID, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan finding: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse finding id: %w", err)
	}
	scanID, err := shared.IDFromString(scanIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scan id: %w", err)
	}
	vulnID, err := shared.IDFromString(vulnIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vulnerability id: %w", err)
	}

	f.ID = id
	f.ScanID = scanID
	f.VulnerabilityID = vulnID
	f.FixedVersion = nullStringValue(fixedVersion)
	f.PkgPath = nullStringValue(pkgPath)
	f.Layer = nullStringValue(layer)
	f.Target = nullStringValue(target)
	f.Status = vulnerability.Status(status)
	f.AssigneeID = parseNullID(assigneeID)

	return &f, nil
}

func (r *FindingRepository) collectFindings(rows *sql.Rows) ([]*vulnerability.Finding, error) {
	var findings []*vulnerability.Finding
	for rows.Next() {
		f, err := r.scanFinding(rows)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate findings: %w", err)
	}
	return findings, nil
}

func (r *FindingRepository) scanHistoryEntry(row rowScanner) (*workflow.HistoryEntry, error) {
	var (
		entry        workflow.HistoryEntry
		idStr        string
		findingIDStr string
		fromStatus   string
		toStatus     string
		actorID      sql.NullString
		comment      sql.NullString
		evidence     []byte
	)

	err := row.Scan(
		&idStr, &findingIDStr, &fromStatus, &toStatus,
		&actorID, &entry.ActorName, &comment, &evidence, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history id: %w", err)
	}
	findingID, err := shared.IDFromString(findingIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse finding id: %w", err)
	}

	entry.ID = id
	entry.FindingID = findingID
	entry.FromStatus = vulnerability.Status(fromStatus)
	entry.ToStatus = vulnerability.Status(toStatus)
	entry.ActorID = parseNullID(actorID)
	entry.Comment = nullStringValue(comment)

	if err := fromJSONB(evidence, &entry.Evidence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
	}

	return &entry, nil
}
