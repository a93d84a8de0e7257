package ingest

import (
	"context"
	"fmt"

	"github.com/vulnwatch/api/internal/metrics"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/parsers/trivy"
)

// CatalogProcessor upserts catalog entries and per-scan findings for the
// parsed vulnerability records of one scan.
type CatalogProcessor struct {
	catalog  vulnerability.CatalogRepository
	findings vulnerability.FindingRepository
	log      *logger.Logger
}

// NewCatalogProcessor creates a new catalog processor.
func NewCatalogProcessor(catalog vulnerability.CatalogRepository, findings vulnerability.FindingRepository, log *logger.Logger) *CatalogProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	return &CatalogProcessor{catalog: catalog, findings: findings, log: log}
}

// Process upserts every parsed record and returns the set of
// fingerprints observed in this scan, the reconciliation input. A
// repeated (scan, fingerprint) pair within one payload updates the
// existing row's location fields and never touches its status.
func (p *CatalogProcessor) Process(ctx context.Context, scanID shared.ID, records []trivy.VulnerabilityRecord, out *Output) (map[string]struct{}, error) {
	fingerprints := make(map[string]struct{}, len(records))

	for i, rec := range records {
		severity := vulnerability.ParseSeverity(rec.Severity)

		entry, err := vulnerability.NewVulnerability(rec.CVEID, severity)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		entry.ApplyMetadata(rec.Title, rec.Description, severity,
			rec.CVSSScore, rec.CVSSVector, rec.CWEIDs, rec.References,
			rec.PublishedAt, rec.LastModifiedAt)

		catalogID, err := p.catalog.Upsert(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("upsert catalog entry %s: %w", rec.CVEID, err)
		}

		finding, err := vulnerability.NewFinding(scanID, catalogID, rec.CVEID, rec.PkgName, rec.InstalledVersion)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		finding.SetLocation(rec.FixedVersion, rec.PkgPath, rec.Layer, rec.Target)

		created, err := p.findings.Upsert(ctx, finding)
		if err != nil {
			return nil, fmt.Errorf("upsert finding %s: %w", finding.Fingerprint, err)
		}

		fingerprints[finding.Fingerprint] = struct{}{}
		if created {
			out.FindingsCreated++
			out.BySeverity[severity]++
			metrics.FindingsCreatedTotal.WithLabelValues(severity.String()).Inc()
		} else {
			out.FindingsUpdated++
			metrics.FindingsUpdatedTotal.Inc()
		}
	}

	p.log.Debug("catalog processing complete",
		"scan_id", scanID.String(),
		"fingerprints", len(fingerprints),
		"created", out.FindingsCreated,
		"updated", out.FindingsUpdated)

	return fingerprints, nil
}
