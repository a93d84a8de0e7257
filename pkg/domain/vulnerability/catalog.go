// Package vulnerability contains the vulnerability catalog and per-scan
// finding entities together with their lifecycle primitives.
package vulnerability

import (
	"fmt"
	"time"

	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Vulnerability is a global catalog entry, one per CVE identifier
// regardless of how many projects or scans observe it.
type Vulnerability struct {
	ID    shared.ID
	CVEID string

	Title       string
	Description string
	Severity    Severity
	CVSSScore   float64
	CVSSVector  string
	CWEIDs      []string
	References  []string

	// PublishedAt is preserved from the first observation; metadata
	// upserts never move it.
	PublishedAt    *time.Time
	LastModifiedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewVulnerability creates a new catalog entry.
func NewVulnerability(cveID string, severity Severity) (*Vulnerability, error) {
	if cveID == "" {
		return nil, fmt.Errorf("%w: CVE id is required", shared.ErrValidation)
	}
	if !severity.IsValid() {
		severity = SeverityUnknown
	}

	now := time.Now().UTC()
	return &Vulnerability{
		ID:        shared.NewID(),
		CVEID:     cveID,
		Severity:  severity,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyMetadata overwrites the mutable catalog fields with the most
// recently observed scanner metadata. First-seen timestamps are kept.
func (v *Vulnerability) ApplyMetadata(title, description string, severity Severity, cvssScore float64, cvssVector string, cweIDs, references []string, published, modified *time.Time) {
	v.Title = title
	v.Description = description
	if severity.IsValid() {
		v.Severity = severity
	}
	v.CVSSScore = cvssScore
	v.CVSSVector = cvssVector
	v.CWEIDs = cweIDs
	v.References = references
	if v.PublishedAt == nil {
		v.PublishedAt = published
	}
	v.LastModifiedAt = modified
	v.UpdatedAt = time.Now().UTC()
}
