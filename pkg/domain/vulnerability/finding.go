package vulnerability

import (
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Finding is the per-scan occurrence of a catalog vulnerability in a
// specific package and version. Unique on (scan, fingerprint).
type Finding struct {
	ID              shared.ID
	ScanID          shared.ID
	VulnerabilityID shared.ID
	CVEID           string

	PkgName          string
	InstalledVersion string
	FixedVersion     string
	PkgPath          string
	Layer            string
	Target           string

	Fingerprint string
	Status      Status
	AssigneeID  *shared.ID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewFinding creates a new finding in the open state.
func NewFinding(scanID, vulnerabilityID shared.ID, cveID, pkgName, installedVersion string) (*Finding, error) {
	if scanID.IsZero() {
		return nil, fmt.Errorf("%w: scan ID is required", shared.ErrValidation)
	}
	if vulnerabilityID.IsZero() {
		return nil, fmt.Errorf("%w: vulnerability ID is required", shared.ErrValidation)
	}
	if cveID == "" {
		return nil, fmt.Errorf("%w: CVE id is required", shared.ErrValidation)
	}
	if pkgName == "" {
		return nil, fmt.Errorf("%w: package name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Finding{
		ID:               shared.NewID(),
		ScanID:           scanID,
		VulnerabilityID:  vulnerabilityID,
		CVEID:            cveID,
		PkgName:          pkgName,
		InstalledVersion: installedVersion,
		Fingerprint:      Fingerprint(cveID, pkgName, installedVersion),
		Status:           StatusOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// SetLocation sets the mutable location fields.
func (f *Finding) SetLocation(fixedVersion, pkgPath, layer, target string) {
	f.FixedVersion = fixedVersion
	f.PkgPath = pkgPath
	f.Layer = layer
	f.Target = target
	f.UpdatedAt = time.Now().UTC()
}
