package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/project"
	"github.com/vulnwatch/api/pkg/domain/scan"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/domain/workflow"
	"github.com/vulnwatch/api/pkg/pagination"
	"github.com/vulnwatch/api/pkg/parsers/trivy"
)

// In-memory repositories shared by the pipeline tests.

type memProjectRepo struct {
	projects map[string]*project.Project
}

func (m *memProjectRepo) GetByID(_ context.Context, id shared.ID) (*project.Project, error) {
	for _, p := range m.projects {
		if p.ID.Equals(id) {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memProjectRepo) GetByNameAndOrg(_ context.Context, name, organization string) (*project.Project, error) {
	p, ok := m.projects[organization+"/"+name]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *memProjectRepo) Create(_ context.Context, p *project.Project) error {
	key := p.Organization + "/" + p.Name
	if _, exists := m.projects[key]; exists {
		return shared.ErrAlreadyExists
	}
	m.projects[key] = p
	return nil
}

type memScanRepo struct {
	scans map[shared.ID]*scan.ScanResult
}

func (m *memScanRepo) Create(_ context.Context, s *scan.ScanResult) error {
	m.scans[s.ID] = s
	return nil
}

func (m *memScanRepo) GetByID(_ context.Context, id shared.ID) (*scan.ScanResult, error) {
	s, ok := m.scans[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (m *memScanRepo) ListByProject(_ context.Context, _ shared.ID, _ pagination.Pagination) (pagination.Result[*scan.ScanResult], error) {
	return pagination.Result[*scan.ScanResult]{}, nil
}

func (m *memScanRepo) UpdateSummary(_ context.Context, id shared.ID, summary scan.Summary) error {
	s, ok := m.scans[id]
	if !ok {
		return shared.ErrNotFound
	}
	s.Summary = summary
	return nil
}

func (m *memScanRepo) Delete(_ context.Context, id shared.ID) error {
	delete(m.scans, id)
	return nil
}

type memCatalogRepo struct {
	byCVE map[string]*vulnerability.Vulnerability
}

func (m *memCatalogRepo) Upsert(_ context.Context, v *vulnerability.Vulnerability) (shared.ID, error) {
	existing, ok := m.byCVE[v.CVEID]
	if !ok {
		m.byCVE[v.CVEID] = v
		return v.ID, nil
	}
	existing.ApplyMetadata(v.Title, v.Description, v.Severity, v.CVSSScore, v.CVSSVector,
		v.CWEIDs, v.References, v.PublishedAt, v.LastModifiedAt)
	return existing.ID, nil
}

func (m *memCatalogRepo) GetByCVEID(_ context.Context, cveID string) (*vulnerability.Vulnerability, error) {
	v, ok := m.byCVE[cveID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return v, nil
}

// memFindingRepo implements both the finding repository and the workflow
// finding store, mirroring the production storage layer.
type memFindingRepo struct {
	scans    *memScanRepo
	findings map[shared.ID]*vulnerability.Finding
	history  map[shared.ID][]*workflow.HistoryEntry
}

func newMemFindingRepo(scans *memScanRepo) *memFindingRepo {
	return &memFindingRepo{
		scans:    scans,
		findings: make(map[shared.ID]*vulnerability.Finding),
		history:  make(map[shared.ID][]*workflow.HistoryEntry),
	}
}

func (m *memFindingRepo) Upsert(_ context.Context, f *vulnerability.Finding) (bool, error) {
	for _, existing := range m.findings {
		if existing.ScanID.Equals(f.ScanID) && existing.Fingerprint == f.Fingerprint {
			existing.SetLocation(f.FixedVersion, f.PkgPath, f.Layer, f.Target)
			return false, nil
		}
	}
	m.findings[f.ID] = f
	return true, nil
}

func (m *memFindingRepo) GetByID(_ context.Context, id shared.ID) (*vulnerability.Finding, error) {
	f, ok := m.findings[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return f, nil
}

func (m *memFindingRepo) ListByScan(_ context.Context, scanID shared.ID, _ pagination.Pagination) (pagination.Result[*vulnerability.Finding], error) {
	var items []*vulnerability.Finding
	for _, f := range m.findings {
		if f.ScanID.Equals(scanID) {
			items = append(items, f)
		}
	}
	return pagination.NewResult(items, int64(len(items)), pagination.New(1, len(items)+1)), nil
}

func (m *memFindingRepo) ListUnresolved(_ context.Context, projectID, excludeScanID shared.ID) ([]*vulnerability.Finding, error) {
	var items []*vulnerability.Finding
	for _, f := range m.findings {
		if f.ScanID.Equals(excludeScanID) || !f.Status.IsUnresolved() {
			continue
		}
		sc, ok := m.scans.scans[f.ScanID]
		if !ok || !sc.ProjectID.Equals(projectID) {
			continue
		}
		items = append(items, f)
	}
	return items, nil
}

func (m *memFindingRepo) CountBySeverity(_ context.Context, _ shared.ID) (map[vulnerability.Severity]int, error) {
	return map[vulnerability.Severity]int{}, nil
}

func (m *memFindingRepo) GetStatus(_ context.Context, findingID shared.ID) (vulnerability.Status, error) {
	f, ok := m.findings[findingID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return f.Status, nil
}

func (m *memFindingRepo) ApplyTransition(_ context.Context, findingID shared.ID, from, to vulnerability.Status, entry *workflow.HistoryEntry) error {
	f, ok := m.findings[findingID]
	if !ok {
		return shared.ErrNotFound
	}
	if f.Status != from {
		return fmt.Errorf("%w: finding status changed concurrently", shared.ErrConflict)
	}
	f.Status = to
	m.history[findingID] = append(m.history[findingID], entry)
	return nil
}

func (m *memFindingRepo) ListHistory(_ context.Context, findingID shared.ID, page pagination.Pagination) (pagination.Result[*workflow.HistoryEntry], error) {
	entries := m.history[findingID]
	return pagination.NewResult(entries, int64(len(entries)), page), nil
}

type memLicenseRepo struct {
	catalog      map[string]*license.License
	observations map[shared.ID][]*license.PackageLicense
}

func (m *memLicenseRepo) GetByName(_ context.Context, name string) (*license.License, error) {
	l, ok := m.catalog[name]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return l, nil
}

func (m *memLicenseRepo) Upsert(_ context.Context, l *license.License) error {
	m.catalog[l.Name] = l
	return nil
}

func (m *memLicenseRepo) CreatePackageLicenses(_ context.Context, observations []*license.PackageLicense) error {
	for _, o := range observations {
		m.observations[o.ScanID] = append(m.observations[o.ScanID], o)
	}
	return nil
}

func (m *memLicenseRepo) ListByScan(_ context.Context, scanID shared.ID) ([]*license.PackageLicense, error) {
	return m.observations[scanID], nil
}

// pipeline bundles the service with its backing stores for assertions.
type pipeline struct {
	svc      *Service
	scans    *memScanRepo
	findings *memFindingRepo
	licenses *memLicenseRepo
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	projects := &memProjectRepo{projects: make(map[string]*project.Project)}
	scans := &memScanRepo{scans: make(map[shared.ID]*scan.ScanResult)}
	catalog := &memCatalogRepo{byCVE: make(map[string]*vulnerability.Vulnerability)}
	findings := newMemFindingRepo(scans)
	licenses := &memLicenseRepo{
		catalog:      make(map[string]*license.License),
		observations: make(map[shared.ID][]*license.PackageLicense),
	}

	wf := workflow.NewService(workflow.NewEngine(workflow.DefaultConfig()), findings, nil)

	svc := NewService(
		trivy.NewParser(nil),
		projects,
		scans,
		NewCatalogProcessor(catalog, findings, nil),
		NewSyncProcessor(findings, wf, nil),
		NewLicenseProcessor(licenses, nil),
		nil,
	)

	return &pipeline{svc: svc, scans: scans, findings: findings, licenses: licenses}
}

func reportWith(findings ...string) []byte {
	vulns := ""
	for i, f := range findings {
		if i > 0 {
			vulns += ","
		}
		vulns += f
	}
	return []byte(`{
		"SchemaVersion": 2,
		"ArtifactName": "registry.example.com/web-app:latest",
		"Results": [{"Target": "web-app", "Class": "lang-pkgs", "Vulnerabilities": [` + vulns + `]}]
	}`)
}

const (
	log4jFinding = `{"VulnerabilityID": "CVE-2021-44228", "PkgName": "log4j-core", "InstalledVersion": "2.14.1", "FixedVersion": "2.17.0", "Severity": "CRITICAL"}`
	zlibFinding  = `{"VulnerabilityID": "CVE-2023-0001", "PkgName": "zlib", "InstalledVersion": "1.2.13", "Severity": "MEDIUM"}`
)

func ingestInput(raw []byte) Input {
	return Input{
		ProjectName:  "web-app",
		Organization: "acme",
		ArtifactName: "web-app",
		Raw:          raw,
	}
}

func TestIngest_FirstScan(t *testing.T) {
	p := newPipeline(t)

	out, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(log4jFinding, zlibFinding)))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if out.FindingsCreated != 2 {
		t.Errorf("FindingsCreated = %d, want 2", out.FindingsCreated)
	}
	if out.FindingsAutoResolved != 0 {
		t.Errorf("first scan must not auto-resolve anything, got %d", out.FindingsAutoResolved)
	}
	for _, f := range p.findings.findings {
		if f.Status != vulnerability.StatusOpen {
			t.Errorf("new finding status = %s, want open", f.Status)
		}
	}

	sc := p.scans.scans[out.ScanID]
	if sc.Summary.TotalFindings != 2 {
		t.Errorf("summary total = %d, want 2", sc.Summary.TotalFindings)
	}
	if sc.Summary.BySeverity[vulnerability.SeverityCritical] != 1 {
		t.Errorf("summary by severity = %v", sc.Summary.BySeverity)
	}
}

func TestIngest_DuplicateRecordsInOnePayload(t *testing.T) {
	p := newPipeline(t)

	out, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(log4jFinding, log4jFinding)))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if out.FindingsCreated != 1 || out.FindingsUpdated != 1 {
		t.Errorf("created=%d updated=%d, want 1/1", out.FindingsCreated, out.FindingsUpdated)
	}
	if len(p.findings.findings) != 1 {
		t.Errorf("stored findings = %d, want 1 (no duplicate rows)", len(p.findings.findings))
	}
}

func TestIngest_RepeatUploadIsIdempotentPerScan(t *testing.T) {
	p := newPipeline(t)
	raw := reportWith(log4jFinding, zlibFinding)

	first, err := p.svc.Ingest(context.Background(), ingestInput(raw))
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := p.svc.Ingest(context.Background(), ingestInput(raw))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if first.ScanID.Equals(second.ScanID) {
		t.Error("each upload must create its own scan row")
	}
	if second.FindingsCreated != 2 {
		t.Errorf("second scan FindingsCreated = %d, want 2", second.FindingsCreated)
	}
	// Identical fingerprint sets mean nothing vanished.
	if second.FindingsAutoResolved != 0 {
		t.Errorf("identical payload must not auto-resolve, got %d", second.FindingsAutoResolved)
	}
}

func TestIngest_ReconciliationFixesVanishedFindings(t *testing.T) {
	p := newPipeline(t)

	first, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(log4jFinding, zlibFinding)))
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	// log4j-core was upgraded; only zlib remains.
	second, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(zlibFinding)))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if second.FindingsAutoResolved != 1 {
		t.Fatalf("FindingsAutoResolved = %d, want 1", second.FindingsAutoResolved)
	}

	var fixed, open *vulnerability.Finding
	for _, f := range p.findings.findings {
		if !f.ScanID.Equals(first.ScanID) {
			continue
		}
		switch f.CVEID {
		case "CVE-2021-44228":
			fixed = f
		case "CVE-2023-0001":
			open = f
		}
	}
	if fixed == nil || fixed.Status != vulnerability.StatusFixed {
		t.Fatalf("vanished finding not fixed: %+v", fixed)
	}
	if open == nil || open.Status != vulnerability.StatusOpen {
		t.Errorf("still-present finding must stay open: %+v", open)
	}

	entries := p.findings.history[fixed.ID]
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.ToStatus != vulnerability.StatusFixed {
		t.Errorf("history to status = %s", entry.ToStatus)
	}
	if entry.ActorName != workflow.SystemActorName {
		t.Errorf("history actor = %s, want system", entry.ActorName)
	}
	if entry.Evidence["auto_resolved"] != true {
		t.Errorf("evidence = %v, want auto_resolved=true", entry.Evidence)
	}
	if entry.Evidence["triggering_scan_id"] != second.ScanID.String() {
		t.Errorf("evidence triggering scan = %v, want %s", entry.Evidence["triggering_scan_id"], second.ScanID)
	}
}

func TestIngest_ManuallyHandledFindingsAreNotAutoResolved(t *testing.T) {
	p := newPipeline(t)

	first, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(log4jFinding)))
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	// Mark the finding ignored before the next scan arrives.
	for _, f := range p.findings.findings {
		if f.ScanID.Equals(first.ScanID) {
			f.Status = vulnerability.StatusIgnored
		}
	}

	second, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(zlibFinding)))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if second.FindingsAutoResolved != 0 {
		t.Errorf("ignored finding must not be auto-resolved, got %d", second.FindingsAutoResolved)
	}
}

func TestIngest_MalformedPayloadRejectedBeforePersistence(t *testing.T) {
	p := newPipeline(t)

	_, err := p.svc.Ingest(context.Background(), ingestInput([]byte(`{ not json }`)))
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(p.scans.scans) != 0 {
		t.Error("malformed payload must not persist a scan")
	}
}

func TestIngest_RecordsLicenses(t *testing.T) {
	p := newPipeline(t)

	raw := []byte(`{
		"SchemaVersion": 2,
		"ArtifactName": "web-app",
		"Results": [{"Target": "OS Packages", "Class": "license", "Licenses": [
			{"PkgName": "readline", "Name": "GPL-3.0-only"},
			{"PkgName": "leftpad", "Name": "MIT"}
		]}]
	}`)

	out, err := p.svc.Ingest(context.Background(), ingestInput(raw))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if out.LicensesRecorded != 2 {
		t.Fatalf("LicensesRecorded = %d, want 2", out.LicensesRecorded)
	}

	observations := p.licenses.observations[out.ScanID]
	for _, obs := range observations {
		if obs.PkgName == "readline" && obs.ResolvedClassification() != license.ClassificationRestricted {
			t.Errorf("readline classification = %s, want restricted", obs.ResolvedClassification())
		}
	}
	if _, ok := p.licenses.catalog["MIT"]; !ok {
		t.Error("license catalog entry for MIT missing")
	}
}

func TestIngest_CreatesProjectOnFirstSight(t *testing.T) {
	p := newPipeline(t)

	out, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(zlibFinding)))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if out.ProjectID.IsZero() {
		t.Fatal("project ID not set")
	}

	// A second upload reuses the same project.
	again, err := p.svc.Ingest(context.Background(), ingestInput(reportWith(zlibFinding)))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !again.ProjectID.Equals(out.ProjectID) {
		t.Error("same (name, organization) must resolve to the same project")
	}
}
