// Package policy evaluates prioritized license rule sets against the
// license observations of a scan.
package policy

import (
	"fmt"
	"slices"
	"time"

	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/shared"
)

// Action is the verdict a matching rule maps to.
type Action string

const (
	ActionBlock Action = "block"
	ActionWarn  Action = "warn"
	ActionAllow Action = "allow"
	ActionAudit Action = "audit"
)

// AllActions returns all valid actions.
func AllActions() []Action {
	return []Action{ActionBlock, ActionWarn, ActionAllow, ActionAudit}
}

// IsValid checks if the action is valid.
func (a Action) IsValid() bool {
	return slices.Contains(AllActions(), a)
}

// String returns the string representation.
func (a Action) String() string {
	return string(a)
}

// MatchKind tags what a rule matches on. Each kind carries only the
// fields it needs; evaluation switches exhaustively over the kind.
type MatchKind string

const (
	// MatchSpecificLicense matches one exact license by name.
	MatchSpecificLicense MatchKind = "specific_license"
	// MatchClassification matches every license in a classification bucket.
	MatchClassification MatchKind = "classification"
	// MatchUnknownLicense catches licenses that could not be classified.
	MatchUnknownLicense MatchKind = "unknown_license"
)

// Rule is one prioritized entry of a license policy.
type Rule struct {
	ID       shared.ID
	PolicyID shared.ID
	Priority int
	Kind     MatchKind
	Action   Action

	// LicenseName is set only for MatchSpecificLicense.
	LicenseName string
	// Classification is set only for MatchClassification.
	Classification license.Classification

	CreatedAt time.Time
}

// NewSpecificLicenseRule creates a rule matching one license by name.
func NewSpecificLicenseRule(policyID shared.ID, priority int, licenseName string, action Action) (*Rule, error) {
	if licenseName == "" {
		return nil, fmt.Errorf("%w: license name is required", shared.ErrValidation)
	}
	return newRule(policyID, priority, MatchSpecificLicense, action, licenseName, "")
}

// NewClassificationRule creates a rule matching a classification bucket.
func NewClassificationRule(policyID shared.ID, priority int, c license.Classification, action Action) (*Rule, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("%w: invalid classification %q", shared.ErrValidation, c)
	}
	return newRule(policyID, priority, MatchClassification, action, "", c)
}

// NewUnknownLicenseRule creates the catch-all rule for unclassifiable
// licenses.
func NewUnknownLicenseRule(policyID shared.ID, priority int, action Action) (*Rule, error) {
	return newRule(policyID, priority, MatchUnknownLicense, action, "", "")
}

func newRule(policyID shared.ID, priority int, kind MatchKind, action Action, licenseName string, c license.Classification) (*Rule, error) {
	if policyID.IsZero() {
		return nil, fmt.Errorf("%w: policy ID is required", shared.ErrValidation)
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: invalid action %q", shared.ErrValidation, action)
	}

	return &Rule{
		ID:             shared.NewID(),
		PolicyID:       policyID,
		Priority:       priority,
		Kind:           kind,
		Action:         action,
		LicenseName:    licenseName,
		Classification: c,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Matches reports whether the rule applies to a license with the given
// name and classification.
func (r *Rule) Matches(licenseName string, c license.Classification) bool {
	switch r.Kind {
	case MatchSpecificLicense:
		return license.Normalize(r.LicenseName) == license.Normalize(licenseName)
	case MatchClassification:
		return r.Classification == c
	case MatchUnknownLicense:
		return c == license.ClassificationUnknown
	default:
		return false
	}
}

// kindPrecedence orders rule kinds for evaluation: exact license rules
// are consulted before classification rules, the unknown catch-all last.
func (r *Rule) kindPrecedence() int {
	switch r.Kind {
	case MatchSpecificLicense:
		return 0
	case MatchClassification:
		return 1
	default:
		return 2
	}
}

// SortRules orders rules for evaluation: kind precedence first, then
// ascending priority.
func SortRules(rules []*Rule) {
	slices.SortStableFunc(rules, func(a, b *Rule) int {
		if d := a.kindPrecedence() - b.kindPrecedence(); d != 0 {
			return d
		}
		return a.Priority - b.Priority
	})
}
