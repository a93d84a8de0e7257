// Package ingest implements the scan ingestion pipeline: parsing,
// catalog and finding upserts, cross-scan reconciliation, and license
// recording.
package ingest

import (
	"github.com/vulnwatch/api/pkg/domain/scan"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
)

// Input carries one scan upload.
type Input struct {
	// ProjectID references an existing project directly. When set it
	// takes precedence over ProjectName/Organization.
	ProjectID *shared.ID

	// ProjectName and Organization identify the project the scan belongs
	// to. The project is created on first sight.
	ProjectName  string
	Organization string

	// ArtifactName is a fallback used when the report itself does not
	// name the artifact.
	ArtifactName string

	// ToolVersion is the scanner version as declared by the uploader.
	ToolVersion string

	// Source carries CI provenance and uploader attribution.
	Source scan.SourceMetadata

	// Raw is the scanner report payload.
	Raw []byte
}

// Output is the result of one ingestion run.
type Output struct {
	ScanID    shared.ID `json:"scan_id"`
	ProjectID shared.ID `json:"project_id"`

	FindingsCreated      int `json:"findings_created"`
	FindingsUpdated      int `json:"findings_updated"`
	FindingsAutoResolved int `json:"findings_auto_resolved"`
	LicensesRecorded     int `json:"licenses_recorded"`

	BySeverity map[vulnerability.Severity]int `json:"by_severity"`

	// Errors collects non-fatal per-record failures. The scan itself
	// was persisted even when this list is non-empty.
	Errors []string `json:"errors,omitempty"`
}

func newOutput() *Output {
	return &Output{
		BySeverity: make(map[vulnerability.Severity]int),
		Errors:     []string{},
	}
}
