package vulnerability

import (
	"slices"
	"strings"
)

// Severity represents the severity level of a vulnerability.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities returns all valid severities, lowest first.
func AllSeverities() []Severity {
	return []Severity{
		SeverityUnknown,
		SeverityLow,
		SeverityMedium,
		SeverityHigh,
		SeverityCritical,
	}
}

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	return slices.Contains(AllSeverities(), s)
}

// String returns the string representation.
func (s Severity) String() string {
	return string(s)
}

// Rank returns the ordering rank of the severity. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ParseSeverity normalizes a scanner-reported severity string.
// Unrecognized values map to SeverityUnknown rather than failing.
func ParseSeverity(str string) Severity {
	s := Severity(strings.ToLower(strings.TrimSpace(str)))
	if !s.IsValid() {
		return SeverityUnknown
	}
	return s
}
