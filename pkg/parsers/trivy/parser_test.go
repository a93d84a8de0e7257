package trivy

import (
	"errors"
	"strings"
	"testing"
)

// Sample Trivy report data for testing.
var validReport = `{
  "SchemaVersion": 2,
  "ArtifactName": "registry.example.com/web-app:1.4.2",
  "ArtifactType": "container_image",
  "Metadata": {
    "RepoTags": ["registry.example.com/web-app:1.4.2"],
    "RepoDigests": ["registry.example.com/web-app@sha256:abc123"]
  },
  "Results": [
    {
      "Target": "web-app (alpine 3.19)",
      "Class": "os-pkgs",
      "Type": "alpine",
      "Vulnerabilities": [
        {
          "VulnerabilityID": "CVE-2021-44228",
          "PkgName": "log4j-core",
          "InstalledVersion": "2.14.1",
          "FixedVersion": "2.17.0",
          "Title": "Remote code execution in Log4j",
          "Description": "JNDI features do not protect against attacker controlled endpoints.",
          "Severity": "CRITICAL",
          "CweIDs": ["CWE-502", "CWE-917"],
          "CVSS": {
            "nvd": {"V2Score": 9.3, "V2Vector": "AV:N/AC:M/Au:N/C:C/I:C/A:C", "V3Score": 10.0, "V3Vector": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H"},
            "redhat": {"V3Score": 9.8, "V3Vector": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}
          },
          "References": ["https://nvd.nist.gov/vuln/detail/CVE-2021-44228"],
          "Layer": {"DiffID": "sha256:layer1"}
        },
        {
          "VulnerabilityID": "CVE-2023-0001",
          "PkgName": "zlib",
          "InstalledVersion": "1.2.13",
          "Severity": "LOW"
        }
      ]
    },
    {
      "Target": "usr/lib/app",
      "Class": "lang-pkgs",
      "Type": "jar"
    },
    {
      "Target": "OS Packages",
      "Class": "license",
      "Licenses": [
        {"Category": "restricted", "PkgName": "readline", "Name": "GPL-3.0-only"},
        {"Category": "notice", "PkgName": "zlib", "Name": "Zlib"}
      ]
    }
  ]
}`

var invalidJSON = `{ not json }`

var unsupportedSchema = `{"SchemaVersion": 99, "ArtifactName": "x"}`

var emptyResults = `{"SchemaVersion": 2, "ArtifactName": "empty:latest"}`

func TestNewParser(t *testing.T) {
	t.Run("with nil options uses defaults", func(t *testing.T) {
		p := NewParser(nil)
		if p.opts == nil {
			t.Fatal("expected options, got nil")
		}
		if !p.opts.IncludeUnfixed {
			t.Error("expected IncludeUnfixed to default to true")
		}
	})

	t.Run("with custom options", func(t *testing.T) {
		p := NewParser(&Options{MinSeverity: "HIGH", MaxFindings: 10})
		if p.opts.MinSeverity != "HIGH" {
			t.Errorf("expected MinSeverity HIGH, got %s", p.opts.MinSeverity)
		}
		if p.opts.MaxFindings != 10 {
			t.Errorf("expected MaxFindings 10, got %d", p.opts.MaxFindings)
		}
	})
}

func TestParser_ParseBytes(t *testing.T) {
	t.Run("valid report", func(t *testing.T) {
		p := NewParser(nil)
		doc, err := p.ParseBytes([]byte(validReport))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if doc.ArtifactName != "registry.example.com/web-app:1.4.2" {
			t.Errorf("unexpected artifact name: %s", doc.ArtifactName)
		}
		if doc.Digest != "registry.example.com/web-app@sha256:abc123" {
			t.Errorf("unexpected digest: %s", doc.Digest)
		}
		if len(doc.Vulnerabilities) != 2 {
			t.Fatalf("expected 2 vulnerability records, got %d", len(doc.Vulnerabilities))
		}

		rec := doc.Vulnerabilities[0]
		if rec.CVEID != "CVE-2021-44228" {
			t.Errorf("unexpected CVE id: %s", rec.CVEID)
		}
		if rec.Target != "web-app (alpine 3.19)" {
			t.Errorf("unexpected target: %s", rec.Target)
		}
		if rec.Layer != "sha256:layer1" {
			t.Errorf("unexpected layer: %s", rec.Layer)
		}
	})

	t.Run("invalid JSON is a hard error", func(t *testing.T) {
		p := NewParser(nil)
		if _, err := p.ParseBytes([]byte(invalidJSON)); !errors.Is(err, ErrInvalidReport) {
			t.Errorf("expected ErrInvalidReport, got %v", err)
		}
	})

	t.Run("unsupported schema version", func(t *testing.T) {
		p := NewParser(nil)
		if _, err := p.ParseBytes([]byte(unsupportedSchema)); !errors.Is(err, ErrUnsupportedSchema) {
			t.Errorf("expected ErrUnsupportedSchema, got %v", err)
		}
	})

	t.Run("missing results yields empty document", func(t *testing.T) {
		p := NewParser(nil)
		doc, err := p.ParseBytes([]byte(emptyResults))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(doc.Vulnerabilities) != 0 || len(doc.Licenses) != 0 {
			t.Error("expected zero records for report without results")
		}
	})

	t.Run("result block without vulnerability list yields zero records", func(t *testing.T) {
		p := NewParser(nil)
		doc, err := p.ParseBytes([]byte(`{"SchemaVersion": 2, "Results": [{"Target": "bare", "Class": "lang-pkgs"}]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(doc.Vulnerabilities) != 0 {
			t.Errorf("expected 0 records, got %d", len(doc.Vulnerabilities))
		}
	})
}

func TestParser_Parse(t *testing.T) {
	p := NewParser(nil)
	doc, err := p.Parse(strings.NewReader(validReport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.SchemaVersion != 2 {
		t.Errorf("expected schema version 2, got %d", doc.SchemaVersion)
	}
}

func TestParser_SeveritySentinel(t *testing.T) {
	report := `{"SchemaVersion": 2, "Results": [{"Target": "t", "Vulnerabilities": [
		{"VulnerabilityID": "CVE-2024-0001", "PkgName": "p", "InstalledVersion": "1.0"}
	]}]}`

	p := NewParser(nil)
	doc, err := p.ParseBytes([]byte(report))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Vulnerabilities[0].Severity != SeverityUnknown {
		t.Errorf("expected UNKNOWN sentinel, got %s", doc.Vulnerabilities[0].Severity)
	}
}

func TestParser_MinSeverityFilter(t *testing.T) {
	p := NewParser(&Options{MinSeverity: "HIGH", IncludeUnfixed: true})
	doc, err := p.ParseBytes([]byte(validReport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 record after filtering, got %d", len(doc.Vulnerabilities))
	}
	if doc.Vulnerabilities[0].Severity != "CRITICAL" {
		t.Errorf("wrong record survived the filter: %s", doc.Vulnerabilities[0].Severity)
	}
}

func TestParser_ExcludeUnfixed(t *testing.T) {
	p := NewParser(&Options{IncludeUnfixed: false})
	doc, err := p.ParseBytes([]byte(validReport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, rec := range doc.Vulnerabilities {
		if rec.FixedVersion == "" {
			t.Errorf("record without fixed version not excluded: %s", rec.CVEID)
		}
	}
}

func TestParser_MaxFindings(t *testing.T) {
	p := NewParser(&Options{MaxFindings: 1, IncludeUnfixed: true})
	doc, err := p.ParseBytes([]byte(validReport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Vulnerabilities) != 1 {
		t.Errorf("expected 1 record, got %d", len(doc.Vulnerabilities))
	}
}

func TestParser_Licenses(t *testing.T) {
	p := NewParser(nil)
	doc, err := p.ParseBytes([]byte(validReport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Licenses) != 2 {
		t.Fatalf("expected 2 license records, got %d", len(doc.Licenses))
	}
	if doc.Licenses[0].License != "GPL-3.0-only" || doc.Licenses[0].PkgName != "readline" {
		t.Errorf("unexpected license record: %+v", doc.Licenses[0])
	}
}

func TestPickCVSS(t *testing.T) {
	t.Run("prefers nvd v3", func(t *testing.T) {
		score, vector := pickCVSS(map[string]CVSS{
			"nvd":    {V3Score: 10.0, V3Vector: "CVSS:3.1/nvd", V2Score: 9.3, V2Vector: "v2"},
			"redhat": {V3Score: 9.8, V3Vector: "CVSS:3.1/redhat"},
		})
		if score != 10.0 || vector != "CVSS:3.1/nvd" {
			t.Errorf("got score=%v vector=%q", score, vector)
		}
	})

	t.Run("falls back to v2 when v3 absent", func(t *testing.T) {
		score, vector := pickCVSS(map[string]CVSS{
			"nvd": {V2Score: 5.0, V2Vector: "AV:N"},
		})
		if score != 5.0 || vector != "AV:N" {
			t.Errorf("got score=%v vector=%q", score, vector)
		}
	})

	t.Run("empty map yields zero values", func(t *testing.T) {
		score, vector := pickCVSS(nil)
		if score != 0 || vector != "" {
			t.Errorf("got score=%v vector=%q", score, vector)
		}
	})
}

func TestCountBySeverity(t *testing.T) {
	p := NewParser(nil)
	doc, err := p.ParseBytes([]byte(validReport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := CountBySeverity(doc)
	if counts["CRITICAL"] != 1 || counts["LOW"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
