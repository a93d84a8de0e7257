package vulnerability

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("CVE-2021-44228", "log4j-core", "2.14.1")
	b := Fingerprint("CVE-2021-44228", "log4j-core", "2.14.1")

	if a != b {
		t.Errorf("Fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != FingerprintLength {
		t.Errorf("Fingerprint length = %d, want %d", len(a), FingerprintLength)
	}
}

func TestFingerprint_DistinctInputs(t *testing.T) {
	base := Fingerprint("CVE-2021-44228", "log4j-core", "2.14.1")

	variants := map[string]string{
		"different cve":     Fingerprint("CVE-2021-45046", "log4j-core", "2.14.1"),
		"different package": Fingerprint("CVE-2021-44228", "log4j-api", "2.14.1"),
		"different version": Fingerprint("CVE-2021-44228", "log4j-core", "2.15.0"),
	}

	for name, fp := range variants {
		if fp == base {
			t.Errorf("%s: fingerprint collided with base", name)
		}
	}
}

func TestFingerprint_TrimsWhitespace(t *testing.T) {
	a := Fingerprint("CVE-2020-1234", "openssl", "1.1.1")
	b := Fingerprint(" CVE-2020-1234 ", " openssl", "1.1.1 ")

	if a != b {
		t.Errorf("Fingerprint should normalize whitespace: %s != %s", a, b)
	}
}

func TestSeverity_Ordering(t *testing.T) {
	ordered := AllSeverities()
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Errorf("severity %s should rank above %s", ordered[i], ordered[i-1])
		}
	}

	if !SeverityCritical.AtLeast(SeverityHigh) {
		t.Error("critical should be at least high")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low should not be at least medium")
	}
}

func TestParseSeverity_UnknownFallback(t *testing.T) {
	if got := ParseSeverity("NEGLIGIBLE"); got != SeverityUnknown {
		t.Errorf("ParseSeverity(NEGLIGIBLE) = %s, want unknown", got)
	}
	if got := ParseSeverity("HIGH"); got != SeverityHigh {
		t.Errorf("ParseSeverity(HIGH) = %s, want high", got)
	}
}

func TestStatus_UnresolvedSubset(t *testing.T) {
	for _, s := range UnresolvedStatuses() {
		if !s.IsUnresolved() {
			t.Errorf("%s should be unresolved", s)
		}
	}
	for _, s := range []Status{StatusFixed, StatusClosed, StatusIgnored, StatusFalsePositive, StatusAccepted} {
		if s.IsUnresolved() {
			t.Errorf("%s should not be unresolved", s)
		}
	}
}
