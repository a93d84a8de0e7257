package license

import (
	"context"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Repository persists license catalog entries and per-scan observations.
type Repository interface {
	// GetByName returns a catalog entry for a license name, or a
	// not-found error.
	GetByName(ctx context.Context, name string) (*License, error)

	// Upsert creates the catalog entry or refreshes its classification.
	Upsert(ctx context.Context, l *License) error

	// CreatePackageLicenses persists a batch of per-scan observations.
	CreatePackageLicenses(ctx context.Context, observations []*PackageLicense) error

	// ListByScan returns the observations recorded for a scan.
	ListByScan(ctx context.Context, scanID shared.ID) ([]*PackageLicense, error)
}
