package scan

import (
	"context"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/pagination"
)

// Repository persists scan results.
type Repository interface {
	// Create persists a new scan result.
	Create(ctx context.Context, s *ScanResult) error

	// GetByID returns a scan result by id. The raw payload is included.
	GetByID(ctx context.Context, id shared.ID) (*ScanResult, error)

	// ListByProject returns the project's scans, newest first, without
	// raw payloads.
	ListByProject(ctx context.Context, projectID shared.ID, page pagination.Pagination) (pagination.Result[*ScanResult], error)

	// UpdateSummary replaces the derived summary of a scan.
	UpdateSummary(ctx context.Context, id shared.ID, summary Summary) error

	// Delete removes a scan wholesale, cascading its findings. This is
	// an administrative operation.
	Delete(ctx context.Context, id shared.ID) error
}
