package policy

import (
	"context"
	"testing"

	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/project"
	"github.com/vulnwatch/api/pkg/domain/scan"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/pagination"
)

type mockPolicyRepo struct {
	policies map[shared.ID]*Policy
	defaults map[string]*Policy
	rules    map[shared.ID][]*Rule
}

func newMockPolicyRepo() *mockPolicyRepo {
	return &mockPolicyRepo{
		policies: make(map[shared.ID]*Policy),
		defaults: make(map[string]*Policy),
		rules:    make(map[shared.ID][]*Rule),
	}
}

func (m *mockPolicyRepo) GetByID(_ context.Context, id shared.ID) (*Policy, error) {
	p, ok := m.policies[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockPolicyRepo) GetDefaultForOrganization(_ context.Context, organization string) (*Policy, error) {
	p, ok := m.defaults[organization]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockPolicyRepo) Create(_ context.Context, p *Policy) error {
	m.policies[p.ID] = p
	if p.IsDefault {
		m.defaults[p.Organization] = p
	}
	return nil
}

func (m *mockPolicyRepo) CreateRule(_ context.Context, r *Rule) error {
	m.rules[r.PolicyID] = append(m.rules[r.PolicyID], r)
	return nil
}

func (m *mockPolicyRepo) ListRules(_ context.Context, policyID shared.ID) ([]*Rule, error) {
	return m.rules[policyID], nil
}

type mockScanRepo struct {
	scans map[shared.ID]*scan.ScanResult
}

func (m *mockScanRepo) Create(_ context.Context, s *scan.ScanResult) error {
	m.scans[s.ID] = s
	return nil
}

func (m *mockScanRepo) GetByID(_ context.Context, id shared.ID) (*scan.ScanResult, error) {
	s, ok := m.scans[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (m *mockScanRepo) ListByProject(_ context.Context, _ shared.ID, _ pagination.Pagination) (pagination.Result[*scan.ScanResult], error) {
	return pagination.Result[*scan.ScanResult]{}, nil
}

func (m *mockScanRepo) UpdateSummary(_ context.Context, _ shared.ID, _ scan.Summary) error {
	return nil
}

func (m *mockScanRepo) Delete(_ context.Context, id shared.ID) error {
	delete(m.scans, id)
	return nil
}

type mockProjectRepo struct {
	projects map[shared.ID]*project.Project
}

func (m *mockProjectRepo) GetByID(_ context.Context, id shared.ID) (*project.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockProjectRepo) GetByNameAndOrg(_ context.Context, _, _ string) (*project.Project, error) {
	return nil, shared.ErrNotFound
}

func (m *mockProjectRepo) Create(_ context.Context, p *project.Project) error {
	m.projects[p.ID] = p
	return nil
}

type mockLicenseRepo struct {
	observations map[shared.ID][]*license.PackageLicense
}

func (m *mockLicenseRepo) GetByName(_ context.Context, _ string) (*license.License, error) {
	return nil, shared.ErrNotFound
}

func (m *mockLicenseRepo) Upsert(_ context.Context, _ *license.License) error { return nil }

func (m *mockLicenseRepo) CreatePackageLicenses(_ context.Context, obs []*license.PackageLicense) error {
	for _, o := range obs {
		m.observations[o.ScanID] = append(m.observations[o.ScanID], o)
	}
	return nil
}

func (m *mockLicenseRepo) ListByScan(_ context.Context, scanID shared.ID) ([]*license.PackageLicense, error) {
	return m.observations[scanID], nil
}

type evalFixture struct {
	svc      *Service
	policies *mockPolicyRepo
	scanID   shared.ID
	policyID shared.ID
}

func newEvalFixture(t *testing.T, observations []*license.PackageLicense) *evalFixture {
	t.Helper()

	proj, err := project.NewProject("payments", "acme")
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	projects := &mockProjectRepo{projects: map[shared.ID]*project.Project{proj.ID: proj}}

	sc, err := scan.NewScanResult(proj.ID, "registry/payments:1.0", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewScanResult: %v", err)
	}
	scans := &mockScanRepo{scans: map[shared.ID]*scan.ScanResult{sc.ID: sc}}

	licenses := &mockLicenseRepo{observations: make(map[shared.ID][]*license.PackageLicense)}
	for _, o := range observations {
		o.ScanID = sc.ID
	}
	licenses.observations[sc.ID] = observations

	policies := newMockPolicyRepo()
	pol, err := NewPolicy("default", "acme", true)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	if err := policies.Create(context.Background(), pol); err != nil {
		t.Fatalf("Create policy: %v", err)
	}

	return &evalFixture{
		svc:      NewService(policies, licenses, scans, projects, nil),
		policies: policies,
		scanID:   sc.ID,
		policyID: pol.ID,
	}
}

func (f *evalFixture) addRule(t *testing.T, r *Rule, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("new rule: %v", err)
	}
	if err := f.policies.CreateRule(context.Background(), r); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
}

func obs(pkg, version, raw string) *license.PackageLicense {
	pl := &license.PackageLicense{PkgName: pkg, PkgVersion: version, RawLicense: raw}
	pl.Resolve(license.Classify(raw))
	return pl
}

func TestEvaluate_BlockOnClassification(t *testing.T) {
	f := newEvalFixture(t, []*license.PackageLicense{
		obs("openssl", "3.0.1", "Apache-2.0"),
		obs("readline", "8.2", "GPL-3.0-only"),
	})

	r, err := NewClassificationRule(f.policyID, 10, license.ClassificationRestricted, ActionBlock)
	f.addRule(t, r, err)

	eval, evalErr := f.svc.Evaluate(context.Background(), f.scanID, nil)
	if evalErr != nil {
		t.Fatalf("Evaluate: %v", evalErr)
	}

	if eval.Passed {
		t.Error("expected evaluation to fail")
	}
	if len(eval.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(eval.Violations))
	}
	v := eval.Violations[0]
	if v.License != "GPL-3.0-only" {
		t.Errorf("violation license = %q", v.License)
	}
	if len(v.Packages) != 1 || v.Packages[0].Name != "readline" {
		t.Errorf("violation packages = %+v", v.Packages)
	}
	if eval.LicensesEvaluated != 2 {
		t.Errorf("LicensesEvaluated = %d, want 2", eval.LicensesEvaluated)
	}
}

func TestEvaluate_SpecificLicenseBeatsClassification(t *testing.T) {
	f := newEvalFixture(t, []*license.PackageLicense{
		obs("readline", "8.2", "GPL-3.0-only"),
	})

	// The classification rule blocks all restricted licenses but the
	// exact-name exemption must be consulted first regardless of its
	// numeric priority.
	rc, err := NewClassificationRule(f.policyID, 1, license.ClassificationRestricted, ActionBlock)
	f.addRule(t, rc, err)
	rs, err := NewSpecificLicenseRule(f.policyID, 100, "GPL-3.0-only", ActionAllow)
	f.addRule(t, rs, err)

	eval, evalErr := f.svc.Evaluate(context.Background(), f.scanID, nil)
	if evalErr != nil {
		t.Fatalf("Evaluate: %v", evalErr)
	}

	if !eval.Passed {
		t.Errorf("expected pass, got violations: %+v", eval.Violations)
	}
	if len(eval.Violations) != 0 {
		t.Errorf("violations = %d, want 0", len(eval.Violations))
	}
}

func TestEvaluate_UnknownCatchAll(t *testing.T) {
	f := newEvalFixture(t, []*license.PackageLicense{
		obs("mystery", "0.1.0", "SEE LICENSE IN COPYING"),
		obs("leftpad", "1.0.0", "MIT"),
	})

	r, err := NewUnknownLicenseRule(f.policyID, 1000, ActionWarn)
	f.addRule(t, r, err)

	eval, evalErr := f.svc.Evaluate(context.Background(), f.scanID, nil)
	if evalErr != nil {
		t.Fatalf("Evaluate: %v", evalErr)
	}

	if !eval.Passed {
		t.Error("warnings must not fail the evaluation")
	}
	if len(eval.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(eval.Warnings))
	}
	if eval.Warnings[0].License != "SEE LICENSE IN COPYING" {
		t.Errorf("warning license = %q", eval.Warnings[0].License)
	}
}

func TestEvaluate_NoMatchingRuleFailsOpen(t *testing.T) {
	f := newEvalFixture(t, []*license.PackageLicense{
		obs("leftpad", "1.0.0", "MIT"),
	})

	r, err := NewClassificationRule(f.policyID, 10, license.ClassificationForbidden, ActionBlock)
	f.addRule(t, r, err)

	eval, evalErr := f.svc.Evaluate(context.Background(), f.scanID, nil)
	if evalErr != nil {
		t.Fatalf("Evaluate: %v", evalErr)
	}

	if !eval.Passed {
		t.Error("licenses without a matching rule must pass")
	}
	if eval.RulesMatched != 0 {
		t.Errorf("RulesMatched = %d, want 0", eval.RulesMatched)
	}
}

func TestEvaluate_NoDefaultPolicyPassesTrivially(t *testing.T) {
	f := newEvalFixture(t, []*license.PackageLicense{
		obs("readline", "8.2", "AGPL-3.0-only"),
	})
	// Detach the default so organization lookup comes back empty.
	delete(f.policies.defaults, "acme")

	eval, evalErr := f.svc.Evaluate(context.Background(), f.scanID, nil)
	if evalErr != nil {
		t.Fatalf("Evaluate: %v", evalErr)
	}

	if !eval.Passed {
		t.Error("missing default policy must pass trivially")
	}
}

func TestEvaluate_ExplicitPolicyNotFound(t *testing.T) {
	f := newEvalFixture(t, nil)
	missing := shared.NewID()

	if _, err := f.svc.Evaluate(context.Background(), f.scanID, &missing); !shared.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestEvaluate_GroupsPackagesByLicense(t *testing.T) {
	f := newEvalFixture(t, []*license.PackageLicense{
		obs("pkg-a", "1.0.0", "GPL-2.0-only"),
		obs("pkg-b", "2.0.0", "GPL-2.0-only"),
	})

	r, err := NewSpecificLicenseRule(f.policyID, 1, "GPL-2.0-only", ActionBlock)
	f.addRule(t, r, err)

	eval, evalErr := f.svc.Evaluate(context.Background(), f.scanID, nil)
	if evalErr != nil {
		t.Fatalf("Evaluate: %v", evalErr)
	}

	if len(eval.Violations) != 1 {
		t.Fatalf("violations = %d, want one grouped verdict", len(eval.Violations))
	}
	if got := len(eval.Violations[0].Packages); got != 2 {
		t.Errorf("grouped packages = %d, want 2", got)
	}
	if eval.LicensesEvaluated != 1 {
		t.Errorf("LicensesEvaluated = %d, want 1", eval.LicensesEvaluated)
	}
}

func TestSortRules(t *testing.T) {
	pid := shared.NewID()
	unknown, _ := NewUnknownLicenseRule(pid, 1, ActionWarn)
	classif, _ := NewClassificationRule(pid, 5, license.ClassificationRestricted, ActionBlock)
	specific, _ := NewSpecificLicenseRule(pid, 999, "MIT", ActionAllow)

	rules := []*Rule{unknown, classif, specific}
	SortRules(rules)

	want := []MatchKind{MatchSpecificLicense, MatchClassification, MatchUnknownLicense}
	for i, k := range want {
		if rules[i].Kind != k {
			t.Errorf("rules[%d].Kind = %s, want %s", i, rules[i].Kind, k)
		}
	}
}
