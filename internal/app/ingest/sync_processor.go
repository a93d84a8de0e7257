package ingest

import (
	"context"
	"fmt"

	"github.com/vulnwatch/api/internal/metrics"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/domain/workflow"
	"github.com/vulnwatch/api/pkg/logger"
)

// SyncProcessor reconciles a new scan's fingerprint set against the
// project's prior unresolved findings and auto-resolves the ones that
// vanished.
type SyncProcessor struct {
	findings vulnerability.FindingRepository
	workflow *workflow.Service
	log      *logger.Logger
}

// NewSyncProcessor creates a new sync processor.
func NewSyncProcessor(findings vulnerability.FindingRepository, wf *workflow.Service, log *logger.Logger) *SyncProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	return &SyncProcessor{findings: findings, workflow: wf, log: log}
}

// Reconcile transitions every prior unresolved finding of the project
// whose fingerprint is absent from the new scan to fixed. Transitions
// run independently; a single finding's failure (for example a
// concurrent manual transition) is logged and skipped. A project with
// no prior scans yields an empty prior set and nothing happens.
func (p *SyncProcessor) Reconcile(ctx context.Context, projectID, scanID shared.ID, fingerprints map[string]struct{}, out *Output) error {
	prior, err := p.findings.ListUnresolved(ctx, projectID, scanID)
	if err != nil {
		return fmt.Errorf("list unresolved findings: %w", err)
	}

	input := workflow.TransitionInput{
		To:      vulnerability.StatusFixed,
		Comment: fmt.Sprintf("Auto-resolved: no longer reported by scan %s", scanID),
		Evidence: map[string]any{
			"auto_resolved":      true,
			"triggering_scan_id": scanID.String(),
		},
	}

	for _, finding := range prior {
		if _, present := fingerprints[finding.Fingerprint]; present {
			continue
		}

		if _, err := p.workflow.Transition(ctx, finding.ID, workflow.SystemActor(), input, ""); err != nil {
			p.log.Warn("auto-resolve skipped",
				"finding_id", finding.ID.String(),
				"fingerprint", finding.Fingerprint,
				"error", err)
			continue
		}

		out.FindingsAutoResolved++
		metrics.FindingsAutoResolvedTotal.Inc()
	}

	if out.FindingsAutoResolved > 0 {
		p.log.Info("stale findings auto-resolved",
			"project_id", projectID.String(),
			"scan_id", scanID.String(),
			"count", out.FindingsAutoResolved)
	}

	return nil
}
