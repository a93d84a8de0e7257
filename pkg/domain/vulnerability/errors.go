package vulnerability

import (
	"fmt"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// FindingNotFoundError returns a not-found error for a finding.
func FindingNotFoundError(id shared.ID) error {
	return fmt.Errorf("%w: finding %s", shared.ErrNotFound, id)
}

// FindingAlreadyExistsError returns a conflict error for a duplicate
// (scan, fingerprint) pair.
func FindingAlreadyExistsError(fingerprint string) error {
	return fmt.Errorf("%w: finding with fingerprint %s", shared.ErrAlreadyExists, fingerprint)
}

// StatusConflictError indicates a compare-and-swap status update matched
// no row, typically because a concurrent transition moved the finding.
func StatusConflictError(id shared.ID, expected Status) error {
	return fmt.Errorf("%w: finding %s is no longer in status %s", shared.ErrConflict, id, expected)
}
