// Package scan contains the scan result entity and its repository contract.
package scan

import (
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
)

// SourceMetadata carries CI provenance and uploader attribution for a scan.
// It is purely descriptive and never consulted by reconciliation.
type SourceMetadata struct {
	Pipeline  string `json:"pipeline,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Branch    string `json:"branch,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Summary holds derived aggregates for a scan. It is the only part of a
// scan result that may change after creation.
type Summary struct {
	TotalFindings int                            `json:"total_findings"`
	BySeverity    map[vulnerability.Severity]int `json:"by_severity"`
	AutoResolved  int                            `json:"auto_resolved"`
	Licenses      int                            `json:"licenses"`
}

// ScanResult represents one uploaded artifact scan.
type ScanResult struct {
	ID        shared.ID
	ProjectID shared.ID

	ArtifactName   string
	ArtifactType   string
	ArtifactDigest string
	ArtifactTag    string
	ToolVersion    string
	SchemaVersion  int

	Source     SourceMetadata
	RawPayload []byte
	Summary    Summary

	CreatedAt time.Time
}

// NewScanResult creates a new scan result.
func NewScanResult(projectID shared.ID, artifactName string, raw []byte) (*ScanResult, error) {
	if projectID.IsZero() {
		return nil, fmt.Errorf("%w: project ID is required", shared.ErrValidation)
	}
	if artifactName == "" {
		return nil, fmt.Errorf("%w: artifact name is required", shared.ErrValidation)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: raw payload is required", shared.ErrValidation)
	}

	return &ScanResult{
		ID:           shared.NewID(),
		ProjectID:    projectID,
		ArtifactName: artifactName,
		RawPayload:   raw,
		Summary:      Summary{BySeverity: make(map[vulnerability.Severity]int)},
		CreatedAt:    time.Now().UTC(),
	}, nil
}
