package vulnerability

import (
	"context"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/pagination"
)

// CatalogRepository persists global catalog entries.
type CatalogRepository interface {
	// Upsert creates the catalog row for the entry's CVE id, or updates
	// its mutable metadata if it already exists. The implementation must
	// be atomic (insert-or-update-on-conflict, not read-then-write).
	// It returns the id of the catalog row that now represents the CVE.
	Upsert(ctx context.Context, v *Vulnerability) (shared.ID, error)

	// GetByCVEID returns the catalog entry for a CVE id.
	GetByCVEID(ctx context.Context, cveID string) (*Vulnerability, error)
}

// FindingRepository persists per-scan findings.
type FindingRepository interface {
	// Upsert creates the finding, or updates its mutable location fields
	// when a row with the same (scan, fingerprint) already exists.
	// Status is never touched by an upsert. Returns true when a new row
	// was created.
	Upsert(ctx context.Context, f *Finding) (bool, error)

	// GetByID returns a finding by id.
	GetByID(ctx context.Context, id shared.ID) (*Finding, error)

	// ListByScan returns the findings attached to a scan.
	ListByScan(ctx context.Context, scanID shared.ID, page pagination.Pagination) (pagination.Result[*Finding], error)

	// ListUnresolved returns findings in an unresolved status across all
	// of the project's scans except the one identified by excludeScanID.
	ListUnresolved(ctx context.Context, projectID, excludeScanID shared.ID) ([]*Finding, error)

	// CountBySeverity returns per-severity finding counts for a scan.
	CountBySeverity(ctx context.Context, scanID shared.ID) (map[Severity]int, error)
}
