package trivy

import "time"

// Report mirrors the subset of the Trivy JSON report consumed here.
type Report struct {
	SchemaVersion int      `json:"SchemaVersion,omitempty"`
	ArtifactName  string   `json:"ArtifactName,omitempty"`
	ArtifactType  string   `json:"ArtifactType,omitempty"`
	Metadata      Metadata `json:"Metadata,omitempty"`
	Results       []Result `json:"Results,omitempty"`
}

// Metadata carries artifact identity details.
type Metadata struct {
	ImageID     string   `json:"ImageID,omitempty"`
	RepoTags    []string `json:"RepoTags,omitempty"`
	RepoDigests []string `json:"RepoDigests,omitempty"`
}

// Result is one scan target block (an OS package set, a lockfile, a
// license sweep).
type Result struct {
	Target          string            `json:"Target,omitempty"`
	Class           ResultClass       `json:"Class,omitempty"`
	Type            string            `json:"Type,omitempty"`
	Vulnerabilities []Vulnerability   `json:"Vulnerabilities,omitempty"`
	Licenses        []DetectedLicense `json:"Licenses,omitempty"`
}

// ResultClass distinguishes what a result block reports on.
type ResultClass string

const (
	ClassOSPackages   ResultClass = "os-pkgs"
	ClassLangPackages ResultClass = "lang-pkgs"
	ClassLicense      ResultClass = "license"
	ClassLicenseFile  ResultClass = "license-file"
)

// Vulnerability is one detected CVE occurrence in a package.
type Vulnerability struct {
	VulnerabilityID  string `json:"VulnerabilityID,omitempty"`
	PkgName          string `json:"PkgName,omitempty"`
	PkgPath          string `json:"PkgPath,omitempty"`
	InstalledVersion string `json:"InstalledVersion,omitempty"`
	FixedVersion     string `json:"FixedVersion,omitempty"`

	Title       string   `json:"Title,omitempty"`
	Description string   `json:"Description,omitempty"`
	Severity    string   `json:"Severity,omitempty"`
	CweIDs      []string `json:"CweIDs,omitempty"`

	CVSS       map[string]CVSS `json:"CVSS,omitempty"`
	References []string        `json:"References,omitempty"`

	PublishedDate    *time.Time `json:"PublishedDate,omitempty"`
	LastModifiedDate *time.Time `json:"LastModifiedDate,omitempty"`

	Layer Layer `json:"Layer,omitempty"`
}

// CVSS holds vendor-specific scoring for a vulnerability.
type CVSS struct {
	V2Vector string  `json:"V2Vector,omitempty"`
	V3Vector string  `json:"V3Vector,omitempty"`
	V2Score  float64 `json:"V2Score,omitempty"`
	V3Score  float64 `json:"V3Score,omitempty"`
}

// Layer identifies the image layer a package was found in.
type Layer struct {
	Digest string `json:"Digest,omitempty"`
	DiffID string `json:"DiffID,omitempty"`
}

// DetectedLicense is one license observation from a license result block.
type DetectedLicense struct {
	Severity   string  `json:"Severity,omitempty"`
	Category   string  `json:"Category,omitempty"`
	PkgName    string  `json:"PkgName,omitempty"`
	FilePath   string  `json:"FilePath,omitempty"`
	Name       string  `json:"Name,omitempty"`
	Confidence float64 `json:"Confidence,omitempty"`
	Link       string  `json:"Link,omitempty"`
}
