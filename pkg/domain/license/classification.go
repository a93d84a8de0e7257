// Package license normalizes and classifies package license observations.
package license

import (
	"slices"
	"strings"
)

// Classification buckets a license by the obligations it imposes.
type Classification string

const (
	ClassificationForbidden    Classification = "forbidden"
	ClassificationRestricted   Classification = "restricted"
	ClassificationReciprocal   Classification = "reciprocal"
	ClassificationNotice       Classification = "notice"
	ClassificationPermissive   Classification = "permissive"
	ClassificationUnencumbered Classification = "unencumbered"
	ClassificationUnknown      Classification = "unknown"
)

// AllClassifications returns all valid classifications.
func AllClassifications() []Classification {
	return []Classification{
		ClassificationForbidden,
		ClassificationRestricted,
		ClassificationReciprocal,
		ClassificationNotice,
		ClassificationPermissive,
		ClassificationUnencumbered,
		ClassificationUnknown,
	}
}

// IsValid checks if the classification is valid.
func (c Classification) IsValid() bool {
	return slices.Contains(AllClassifications(), c)
}

// String returns the string representation.
func (c Classification) String() string {
	return string(c)
}

// licenseFamilies maps SPDX family substrings to classifications, in
// match order. Reciprocal families are checked before GPL so that LGPL
// does not hit the GPL substring, and unencumbered before notice so
// that 0BSD does not hit BSD.
var licenseFamilies = []struct {
	substrings     []string
	classification Classification
}{
	{[]string{"AGPL", "SSPL"}, ClassificationForbidden},
	{[]string{"LGPL", "MPL", "EPL", "CDDL"}, ClassificationReciprocal},
	{[]string{"GPL", "EUPL", "OSL"}, ClassificationRestricted},
	{[]string{"CC0", "UNLICENSE", "0BSD", "WTFPL", "PUBLICDOMAIN"}, ClassificationUnencumbered},
	{[]string{"MIT", "APACHE", "BSD", "ISC", "ZLIB"}, ClassificationNotice},
}

// Classify assigns a classification to a raw license string. The string
// is normalized (uppercased, separators stripped) and matched against
// known SPDX family substrings. Anything unrecognized is unknown.
func Classify(raw string) Classification {
	normalized := Normalize(raw)
	if normalized == "" {
		return ClassificationUnknown
	}

	for _, family := range licenseFamilies {
		for _, sub := range family.substrings {
			if strings.Contains(normalized, sub) {
				return family.classification
			}
		}
	}

	return ClassificationUnknown
}

// Normalize uppercases a license string and strips separators so that
// "Apache License 2.0" and "apache-2.0" compare equal.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
