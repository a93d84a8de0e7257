package license

import (
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// License is a catalog entry for an observed license string. The
// classification is persisted so repeated observations of the same
// string do not require re-derivation.
type License struct {
	ID             shared.ID
	Name           string
	SPDXID         string
	Classification Classification
	CreatedAt      time.Time
}

// NewLicense creates a catalog entry, classifying the name immediately.
func NewLicense(name string) (*License, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: license name is required", shared.ErrValidation)
	}

	return &License{
		ID:             shared.NewID(),
		Name:           name,
		SPDXID:         Normalize(name),
		Classification: Classify(name),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// PackageLicense is a per-scan, per-package license observation.
type PackageLicense struct {
	ID     shared.ID
	ScanID shared.ID

	PkgName    string
	PkgVersion string
	PkgPath    string

	RawLicense string
	SPDXID     string
	// Classification is nil until the observation has been resolved
	// through the classifier.
	Classification *Classification

	CreatedAt time.Time
}

// NewPackageLicense creates a new observation.
func NewPackageLicense(scanID shared.ID, pkgName, pkgVersion, rawLicense string) (*PackageLicense, error) {
	if scanID.IsZero() {
		return nil, fmt.Errorf("%w: scan ID is required", shared.ErrValidation)
	}
	if pkgName == "" {
		return nil, fmt.Errorf("%w: package name is required", shared.ErrValidation)
	}
	if rawLicense == "" {
		return nil, fmt.Errorf("%w: license string is required", shared.ErrValidation)
	}

	return &PackageLicense{
		ID:         shared.NewID(),
		ScanID:     scanID,
		PkgName:    pkgName,
		PkgVersion: pkgVersion,
		RawLicense: rawLicense,
		SPDXID:     Normalize(rawLicense),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Resolve records the classification for this observation.
func (p *PackageLicense) Resolve(c Classification) {
	p.Classification = &c
}

// ResolvedClassification returns the classification, or unknown when
// the observation has not been classified yet.
func (p *PackageLicense) ResolvedClassification() Classification {
	if p.Classification == nil {
		return ClassificationUnknown
	}
	return *p.Classification
}
