package policy

import (
	"context"
	"fmt"

	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/project"
	"github.com/vulnwatch/api/pkg/domain/scan"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/logger"
)

// PackageRef identifies one package that carried an evaluated license.
type PackageRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path,omitempty"`
}

// Verdict is the outcome for one distinct license observed in a scan.
type Verdict struct {
	License        string                 `json:"license"`
	Classification license.Classification `json:"classification"`
	Action         Action                 `json:"action"`
	RuleID         shared.ID              `json:"rule_id"`
	Packages       []PackageRef           `json:"packages"`
}

// Evaluation is the result of running a policy against a scan's
// license observations.
type Evaluation struct {
	PolicyID   shared.ID `json:"policy_id"`
	PolicyName string    `json:"policy_name"`
	Passed     bool      `json:"passed"`
	Violations []Verdict `json:"violations"`
	Warnings   []Verdict `json:"warnings"`

	LicensesEvaluated int `json:"licenses_evaluated"`
	RulesMatched      int `json:"rules_matched"`
}

// Service evaluates license policies against recorded scans.
type Service struct {
	policies Repository
	licenses license.Repository
	scans    scan.Repository
	projects project.Repository
	log      *logger.Logger
}

// NewService creates a policy evaluation service.
func NewService(
	policies Repository,
	licenses license.Repository,
	scans scan.Repository,
	projects project.Repository,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		policies: policies,
		licenses: licenses,
		scans:    scans,
		projects: projects,
		log:      log,
	}
}

// Evaluate runs a policy against the license observations of a scan.
// When policyID is nil the default policy of the scan's organization is
// used; if the organization has no default policy the evaluation passes
// trivially.
func (s *Service) Evaluate(ctx context.Context, scanID shared.ID, policyID *shared.ID) (*Evaluation, error) {
	sc, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("load scan: %w", err)
	}

	pol, err := s.resolvePolicy(ctx, sc, policyID)
	if err != nil {
		return nil, err
	}
	if pol == nil {
		s.log.Debug("no policy configured, evaluation passes",
			"scan_id", scanID.String())
		return &Evaluation{Passed: true, Violations: []Verdict{}, Warnings: []Verdict{}}, nil
	}

	observations, err := s.licenses.ListByScan(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("load license observations: %w", err)
	}

	rules, err := s.policies.ListRules(ctx, pol.ID)
	if err != nil {
		return nil, fmt.Errorf("load policy rules: %w", err)
	}
	SortRules(rules)

	eval := s.evaluate(pol, rules, observations)

	s.log.Info("policy evaluated",
		"scan_id", scanID.String(),
		"policy_id", pol.ID.String(),
		"passed", eval.Passed,
		"violations", len(eval.Violations),
		"warnings", len(eval.Warnings))

	return eval, nil
}

func (s *Service) resolvePolicy(ctx context.Context, sc *scan.ScanResult, policyID *shared.ID) (*Policy, error) {
	if policyID != nil {
		pol, err := s.policies.GetByID(ctx, *policyID)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		return pol, nil
	}

	proj, err := s.projects.GetByID(ctx, sc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	pol, err := s.policies.GetDefaultForOrganization(ctx, proj.Organization)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load default policy: %w", err)
	}
	return pol, nil
}

// licenseGroup collects the packages that share one distinct license.
type licenseGroup struct {
	name           string
	classification license.Classification
	packages       []PackageRef
}

func (s *Service) evaluate(pol *Policy, rules []*Rule, observations []*license.PackageLicense) *Evaluation {
	groups := groupByLicense(observations)

	eval := &Evaluation{
		PolicyID:   pol.ID,
		PolicyName: pol.Name,
		Violations: []Verdict{},
		Warnings:   []Verdict{},

		LicensesEvaluated: len(groups),
	}

	for _, g := range groups {
		rule := firstMatch(rules, g)
		if rule == nil {
			continue
		}
		eval.RulesMatched++

		v := Verdict{
			License:        g.name,
			Classification: g.classification,
			Action:         rule.Action,
			RuleID:         rule.ID,
			Packages:       g.packages,
		}
		switch rule.Action {
		case ActionBlock:
			eval.Violations = append(eval.Violations, v)
		case ActionWarn:
			eval.Warnings = append(eval.Warnings, v)
		}
	}

	eval.Passed = len(eval.Violations) == 0
	return eval
}

// groupByLicense folds per-package observations into one group per
// distinct license name, preserving first-seen order.
func groupByLicense(observations []*license.PackageLicense) []*licenseGroup {
	index := make(map[string]*licenseGroup)
	var ordered []*licenseGroup

	for _, obs := range observations {
		key := license.Normalize(obs.RawLicense)
		g, ok := index[key]
		if !ok {
			g = &licenseGroup{
				name:           obs.RawLicense,
				classification: obs.ResolvedClassification(),
			}
			index[key] = g
			ordered = append(ordered, g)
		}
		g.packages = append(g.packages, PackageRef{
			Name:    obs.PkgName,
			Version: obs.PkgVersion,
			Path:    obs.PkgPath,
		})
	}

	return ordered
}

// firstMatch returns the first rule that applies to the group. Rules
// must already be sorted by SortRules, so exact license matches win
// over classification matches, which win over the unknown catch-all.
func firstMatch(rules []*Rule, g *licenseGroup) *Rule {
	for _, r := range rules {
		if r.Matches(g.name, g.classification) {
			return r
		}
	}
	return nil
}
