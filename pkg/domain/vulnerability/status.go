package vulnerability

import (
	"fmt"
	"slices"
	"strings"
)

// Status represents the lifecycle status of a finding.
type Status string

const (
	StatusOpen          Status = "open"
	StatusAssigned      Status = "assigned"
	StatusInProgress    Status = "in_progress"
	StatusFixSubmitted  Status = "fix_submitted"
	StatusVerifying     Status = "verifying"
	StatusFixed         Status = "fixed"
	StatusClosed        Status = "closed"
	StatusIgnored       Status = "ignored"
	StatusFalsePositive Status = "false_positive"
	StatusAccepted      Status = "accepted"
)

// AllStatuses returns all valid finding statuses.
func AllStatuses() []Status {
	return []Status{
		StatusOpen,
		StatusAssigned,
		StatusInProgress,
		StatusFixSubmitted,
		StatusVerifying,
		StatusFixed,
		StatusClosed,
		StatusIgnored,
		StatusFalsePositive,
		StatusAccepted,
	}
}

// UnresolvedStatuses returns the statuses considered still unresolved.
// Findings in these statuses are candidates for auto-resolution when a
// newer scan of the same project no longer reports their fingerprint.
func UnresolvedStatuses() []Status {
	return []Status{StatusOpen, StatusAssigned, StatusInProgress}
}

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	return slices.Contains(AllStatuses(), s)
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// IsUnresolved reports whether the status is in the unresolved subset.
func (s Status) IsUnresolved() bool {
	return slices.Contains(UnresolvedStatuses(), s)
}

// ParseStatus parses a string into a Status.
func ParseStatus(str string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(str)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid finding status: %s", str)
	}
	return s, nil
}
