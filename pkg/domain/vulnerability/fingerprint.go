package vulnerability

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FingerprintLength is the length of the hex-encoded fingerprint.
// 16 hex characters carry 64 bits, which keeps the collision probability
// below 1e-7 for up to a million findings per project.
const FingerprintLength = 16

// Fingerprint computes a stable identity for a (CVE, package, version)
// triple. It is the join key used to match findings across scans of the
// same project, so it must stay deterministic across releases.
func Fingerprint(cveID, pkgName, pkgVersion string) string {
	canonical := strings.Join([]string{
		strings.TrimSpace(cveID),
		strings.TrimSpace(pkgName),
		strings.TrimSpace(pkgVersion),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}
