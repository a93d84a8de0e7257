package ingest

import (
	"context"
	"fmt"

	"github.com/vulnwatch/api/internal/metrics"
	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/parsers/trivy"
)

// LicenseProcessor classifies and records the per-package license
// observations of one scan.
type LicenseProcessor struct {
	licenses license.Repository
	log      *logger.Logger
}

// NewLicenseProcessor creates a new license processor.
func NewLicenseProcessor(licenses license.Repository, log *logger.Logger) *LicenseProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	return &LicenseProcessor{licenses: licenses, log: log}
}

// Process upserts a catalog entry per distinct license string and
// persists one observation per record. Classification happens at
// recording time so policy evaluation never re-derives it.
func (p *LicenseProcessor) Process(ctx context.Context, scanID shared.ID, records []trivy.LicenseRecord, out *Output) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	observations := make([]*license.PackageLicense, 0, len(records))

	for i, rec := range records {
		pkgName := rec.PkgName
		if pkgName == "" {
			pkgName = rec.FilePath
		}
		if pkgName == "" || rec.License == "" {
			continue
		}

		if _, done := seen[rec.License]; !done {
			seen[rec.License] = struct{}{}
			entry, err := license.NewLicense(rec.License)
			if err == nil {
				err = p.licenses.Upsert(ctx, entry)
			}
			if err != nil {
				p.log.Warn("license catalog upsert failed", "license", rec.License, "error", err)
			}
		}

		obs, err := license.NewPackageLicense(scanID, pkgName, "", rec.License)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("license record %d: %v", i, err))
			continue
		}
		obs.PkgPath = rec.FilePath
		obs.Resolve(license.Classify(rec.License))

		observations = append(observations, obs)
	}

	if len(observations) == 0 {
		return nil
	}

	if err := p.licenses.CreatePackageLicenses(ctx, observations); err != nil {
		return fmt.Errorf("persist license observations: %w", err)
	}

	out.LicensesRecorded = len(observations)
	for _, obs := range observations {
		metrics.LicensesObservedTotal.WithLabelValues(obs.ResolvedClassification().String()).Inc()
	}

	return nil
}
