package license

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  string
		want Classification
	}{
		{"AGPL-3.0-only", ClassificationForbidden},
		{"SSPL-1.0", ClassificationForbidden},
		{"GPL-2.0-only", ClassificationRestricted},
		{"GPL-3.0-or-later", ClassificationRestricted},
		{"LGPL-2.1-only", ClassificationReciprocal},
		{"MPL-2.0", ClassificationReciprocal},
		{"EPL-2.0", ClassificationReciprocal},
		{"CDDL-1.0", ClassificationReciprocal},
		{"MIT", ClassificationNotice},
		{"Apache-2.0", ClassificationNotice},
		{"Apache License 2.0", ClassificationNotice},
		{"BSD-3-Clause", ClassificationNotice},
		{"ISC", ClassificationNotice},
		{"CC0-1.0", ClassificationUnencumbered},
		{"The Unlicense", ClassificationUnencumbered},
		{"0BSD", ClassificationUnencumbered},
		{"Proprietary", ClassificationUnknown},
		{"SEE LICENSE IN COPYING", ClassificationUnknown},
		{"", ClassificationUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			if got := Classify(tc.raw); got != tc.want {
				t.Errorf("Classify(%q) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

func TestClassify_LGPLNotGPL(t *testing.T) {
	// LGPL must never fall into the GPL (restricted) bucket.
	if got := Classify("LGPL-3.0-only"); got != ClassificationReciprocal {
		t.Errorf("Classify(LGPL-3.0-only) = %s, want reciprocal", got)
	}
}

func TestClassify_ZeroBSDNotBSD(t *testing.T) {
	// 0BSD is public-domain-equivalent, not a notice license.
	if got := Classify("0BSD"); got != ClassificationUnencumbered {
		t.Errorf("Classify(0BSD) = %s, want unencumbered", got)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Apache-2.0":         "APACHE20",
		"Apache License 2.0": "APACHELICENSE20",
		" mit ":              "MIT",
		"GPL-3.0+":           "GPL30",
	}
	for raw, want := range cases {
		if got := Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestPackageLicense_Resolve(t *testing.T) {
	pl := &PackageLicense{RawLicense: "MIT"}
	if pl.ResolvedClassification() != ClassificationUnknown {
		t.Error("unclassified observation should resolve to unknown")
	}

	pl.Resolve(ClassificationNotice)
	if pl.ResolvedClassification() != ClassificationNotice {
		t.Error("resolved classification not returned")
	}
}
