package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vulnwatch/api/internal/metrics"
	"github.com/vulnwatch/api/pkg/domain/project"
	"github.com/vulnwatch/api/pkg/domain/scan"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/parsers/trivy"
)

// Service runs the full ingestion pipeline for one scan upload.
//
// The pipeline is ordered: parse, resolve project, persist the scan,
// upsert catalog entries and findings, reconcile against prior scans,
// record licenses, aggregate the summary. Parsing and the base
// scan/finding writes are fatal on failure; reconciliation and license
// recording are best effort once the scan exists.
type Service struct {
	parser   *trivy.Parser
	projects project.Repository
	scans    scan.Repository

	catalogProcessor *CatalogProcessor
	syncProcessor    *SyncProcessor
	licenseProcessor *LicenseProcessor

	log *logger.Logger
}

// NewService creates a new ingest service.
func NewService(
	parser *trivy.Parser,
	projects project.Repository,
	scans scan.Repository,
	catalogProcessor *CatalogProcessor,
	syncProcessor *SyncProcessor,
	licenseProcessor *LicenseProcessor,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		parser:   parser,
		projects: projects,
		scans:    scans,

		catalogProcessor: catalogProcessor,
		syncProcessor:    syncProcessor,
		licenseProcessor: licenseProcessor,

		log: log.With("service", "ingest"),
	}
}

// Ingest processes one scan upload end to end.
func (s *Service) Ingest(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()

	doc, err := s.parser.ParseBytes(in.Raw)
	if err != nil {
		metrics.ScansIngestedTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	proj, err := s.resolveProject(ctx, in)
	if err != nil {
		metrics.ScansIngestedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	artifactName := doc.ArtifactName
	if artifactName == "" {
		artifactName = in.ArtifactName
	}

	result, err := scan.NewScanResult(proj.ID, artifactName, in.Raw)
	if err != nil {
		metrics.ScansIngestedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	result.ArtifactType = doc.ArtifactType
	result.ArtifactDigest = doc.Digest
	result.ArtifactTag = doc.ArtifactTag
	result.ToolVersion = in.ToolVersion
	result.SchemaVersion = doc.SchemaVersion
	result.Source = in.Source

	if err := s.scans.Create(ctx, result); err != nil {
		metrics.ScansIngestedTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("persist scan: %w", err)
	}

	out := newOutput()
	out.ScanID = result.ID
	out.ProjectID = proj.ID

	s.log.Info("ingesting scan",
		"scan_id", result.ID.String(),
		"project", proj.Name,
		"organization", proj.Organization,
		"artifact", artifactName,
		"records", len(doc.Vulnerabilities),
		"license_records", len(doc.Licenses))

	fingerprints, err := s.catalogProcessor.Process(ctx, result.ID, doc.Vulnerabilities, out)
	if err != nil {
		metrics.ScansIngestedTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// The scan and its findings are committed. Everything below is
	// enrichment and must not fail the upload.
	if err := s.syncProcessor.Reconcile(ctx, proj.ID, result.ID, fingerprints, out); err != nil {
		s.log.Error("reconciliation failed", "scan_id", result.ID.String(), "error", err)
		out.Errors = append(out.Errors, fmt.Sprintf("reconciliation: %v", err))
	}

	if err := s.licenseProcessor.Process(ctx, result.ID, doc.Licenses, out); err != nil {
		s.log.Error("license processing failed", "scan_id", result.ID.String(), "error", err)
		out.Errors = append(out.Errors, fmt.Sprintf("licenses: %v", err))
	}

	s.updateSummary(ctx, result.ID, fingerprints, out)

	metrics.ScansIngestedTotal.WithLabelValues("success").Inc()
	metrics.ScanIngestDuration.Observe(time.Since(start).Seconds())

	s.log.Info("ingestion complete",
		"scan_id", result.ID.String(),
		"findings_created", out.FindingsCreated,
		"findings_updated", out.FindingsUpdated,
		"findings_auto_resolved", out.FindingsAutoResolved,
		"licenses_recorded", out.LicensesRecorded,
		"errors", len(out.Errors))

	return out, nil
}

// resolveProject returns the target project. An explicit id must
// reference an existing project; a (name, organization) pair creates
// the project on first sight.
func (s *Service) resolveProject(ctx context.Context, in Input) (*project.Project, error) {
	if in.ProjectID != nil {
		proj, err := s.projects.GetByID(ctx, *in.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("resolve project: %w", err)
		}
		return proj, nil
	}

	name, organization := in.ProjectName, in.Organization
	proj, err := s.projects.GetByNameAndOrg(ctx, name, organization)
	if err == nil {
		return proj, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("resolve project: %w", err)
	}

	proj, err = project.NewProject(name, organization)
	if err != nil {
		return nil, err
	}
	if err := s.projects.Create(ctx, proj); err != nil {
		// Concurrent upload of the same new project; reread.
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.projects.GetByNameAndOrg(ctx, name, organization)
		}
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.log.Info("project created", "project", name, "organization", organization)
	return proj, nil
}

// updateSummary writes the derived aggregates back onto the scan row.
func (s *Service) updateSummary(ctx context.Context, scanID shared.ID, fingerprints map[string]struct{}, out *Output) {
	summary := scan.Summary{
		TotalFindings: len(fingerprints),
		BySeverity:    make(map[vulnerability.Severity]int, len(out.BySeverity)),
		AutoResolved:  out.FindingsAutoResolved,
		Licenses:      out.LicensesRecorded,
	}
	for severity, count := range out.BySeverity {
		summary.BySeverity[severity] = count
	}

	if err := s.scans.UpdateSummary(ctx, scanID, summary); err != nil {
		s.log.Warn("summary update failed", "scan_id", scanID.String(), "error", err)
	}
}
