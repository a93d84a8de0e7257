// Package trivy parses Trivy JSON reports into normalized vulnerability
// and license records.
package trivy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Parser errors.
var (
	ErrInvalidReport     = errors.New("invalid Trivy report")
	ErrUnsupportedSchema = errors.New("unsupported Trivy schema version")
)

// SupportedSchemaVersions contains the supported report schema versions.
// Version 0 is accepted too: old reports omit the field entirely.
var SupportedSchemaVersions = []int{1, 2}

// SeverityUnknown is the sentinel recorded when a report omits a
// severity.
const SeverityUnknown = "UNKNOWN"

// severityRank orders severities for MinSeverity filtering.
var severityRank = map[string]int{
	"":              0,
	SeverityUnknown: 0,
	"LOW":           1,
	"MEDIUM":        2,
	"HIGH":          3,
	"CRITICAL":      4,
}

// cvssSourcePreference orders CVSS vendors; the first source present
// wins. NVD scores are authoritative when available.
var cvssSourcePreference = []string{"nvd", "ghsa", "redhat", "bitnami"}

// VulnerabilityRecord is one normalized CVE occurrence.
type VulnerabilityRecord struct {
	CVEID       string
	Title       string
	Description string
	Severity    string

	CVSSScore  float64
	CVSSVector string
	CWEIDs     []string
	References []string

	PublishedAt    *time.Time
	LastModifiedAt *time.Time

	PkgName          string
	InstalledVersion string
	FixedVersion     string
	PkgPath          string
	Layer            string
	Target           string
}

// LicenseRecord is one normalized per-package license observation.
type LicenseRecord struct {
	PkgName  string
	FilePath string
	License  string
	Category string
}

// Document is the normalized output of a parsed report.
type Document struct {
	ArtifactName  string
	ArtifactType  string
	ArtifactTag   string
	Digest        string
	SchemaVersion int

	Vulnerabilities []VulnerabilityRecord
	Licenses        []LicenseRecord
}

// Options configures the parser behavior.
type Options struct {
	// MinSeverity filters vulnerabilities by minimum severity.
	// Valid values: "", "UNKNOWN", "LOW", "MEDIUM", "HIGH", "CRITICAL".
	MinSeverity string

	// MaxFindings limits the number of vulnerability records (0 = unlimited).
	MaxFindings int

	// IncludeUnfixed includes vulnerabilities without a fixed version.
	IncludeUnfixed bool
}

// DefaultOptions returns the default parser options.
func DefaultOptions() *Options {
	return &Options{
		MinSeverity:    "",
		MaxFindings:    0,
		IncludeUnfixed: true,
	}
}

// Parser parses Trivy JSON reports.
type Parser struct {
	opts *Options
}

// NewParser creates a new Trivy parser with the given options.
// If opts is nil, default options are used.
func NewParser(opts *Options) *Parser {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Parser{opts: opts}
}

// ParseFile parses a Trivy report from the given path.
func (p *Parser) ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse parses a Trivy report from a reader.
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	return p.ParseBytes(data)
}

// ParseBytes parses a Trivy report from bytes. Malformed top-level JSON
// is a hard error; missing nested blocks yield empty record lists.
func (p *Parser) ParseBytes(data []byte) (*Document, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	if err := p.validate(&report); err != nil {
		return nil, err
	}

	doc := &Document{
		ArtifactName:    report.ArtifactName,
		ArtifactType:    report.ArtifactType,
		SchemaVersion:   report.SchemaVersion,
		Vulnerabilities: []VulnerabilityRecord{},
		Licenses:        []LicenseRecord{},
	}
	if len(report.Metadata.RepoTags) > 0 {
		doc.ArtifactTag = report.Metadata.RepoTags[0]
	}
	if len(report.Metadata.RepoDigests) > 0 {
		doc.Digest = report.Metadata.RepoDigests[0]
	} else if report.Metadata.ImageID != "" {
		doc.Digest = report.Metadata.ImageID
	}

	for _, result := range report.Results {
		p.collectVulnerabilities(doc, &result)
		collectLicenses(doc, &result)
	}

	return doc, nil
}

func (p *Parser) validate(report *Report) error {
	if report.SchemaVersion == 0 {
		return nil
	}
	for _, v := range SupportedSchemaVersions {
		if v == report.SchemaVersion {
			return nil
		}
	}
	return fmt.Errorf("%w: %d (supported: %v)", ErrUnsupportedSchema, report.SchemaVersion, SupportedSchemaVersions)
}

func (p *Parser) collectVulnerabilities(doc *Document, result *Result) {
	for _, v := range result.Vulnerabilities {
		if !p.shouldInclude(&v) {
			continue
		}
		if p.opts.MaxFindings > 0 && len(doc.Vulnerabilities) >= p.opts.MaxFindings {
			return
		}

		rec := VulnerabilityRecord{
			CVEID:       v.VulnerabilityID,
			Title:       v.Title,
			Description: v.Description,
			Severity:    normalizeSeverity(v.Severity),

			CWEIDs:     v.CweIDs,
			References: v.References,

			PublishedAt:    v.PublishedDate,
			LastModifiedAt: v.LastModifiedDate,

			PkgName:          v.PkgName,
			InstalledVersion: v.InstalledVersion,
			FixedVersion:     v.FixedVersion,
			PkgPath:          v.PkgPath,
			Layer:            v.Layer.DiffID,
			Target:           result.Target,
		}
		if rec.Layer == "" {
			rec.Layer = v.Layer.Digest
		}
		rec.CVSSScore, rec.CVSSVector = pickCVSS(v.CVSS)

		doc.Vulnerabilities = append(doc.Vulnerabilities, rec)
	}
}

func collectLicenses(doc *Document, result *Result) {
	for _, l := range result.Licenses {
		if l.Name == "" {
			continue
		}
		doc.Licenses = append(doc.Licenses, LicenseRecord{
			PkgName:  l.PkgName,
			FilePath: l.FilePath,
			License:  l.Name,
			Category: l.Category,
		})
	}
}

func (p *Parser) shouldInclude(v *Vulnerability) bool {
	if v.VulnerabilityID == "" || v.PkgName == "" {
		return false
	}

	if !p.opts.IncludeUnfixed && v.FixedVersion == "" {
		return false
	}

	if p.opts.MinSeverity != "" && severityRank[normalizeSeverity(v.Severity)] < severityRank[p.opts.MinSeverity] {
		return false
	}

	return true
}

// normalizeSeverity maps an absent severity to the UNKNOWN sentinel.
func normalizeSeverity(s string) string {
	if _, ok := severityRank[s]; !ok || s == "" {
		return SeverityUnknown
	}
	return s
}

// pickCVSS selects one score/vector pair from the vendor map, preferring
// V3 over V2 and NVD over other sources.
func pickCVSS(sources map[string]CVSS) (float64, string) {
	pick := func(c CVSS) (float64, string, bool) {
		if c.V3Vector != "" || c.V3Score > 0 {
			return c.V3Score, c.V3Vector, true
		}
		if c.V2Vector != "" || c.V2Score > 0 {
			return c.V2Score, c.V2Vector, true
		}
		return 0, "", false
	}

	for _, source := range cvssSourcePreference {
		if c, ok := sources[source]; ok {
			if score, vector, found := pick(c); found {
				return score, vector
			}
		}
	}
	for _, c := range sources {
		if score, vector, found := pick(c); found {
			return score, vector
		}
	}
	return 0, ""
}

// CountBySeverity returns vulnerability record counts keyed by severity.
func CountBySeverity(doc *Document) map[string]int {
	counts := make(map[string]int)
	for _, v := range doc.Vulnerabilities {
		counts[v.Severity]++
	}
	return counts
}
