package workflow

import (
	"testing"

	"github.com/vulnwatch/api/pkg/domain/vulnerability"
)

func TestEngine_FallbackTable(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("legal edge allowed without role", func(t *testing.T) {
		result := engine.Validate(vulnerability.StatusOpen, vulnerability.StatusAssigned, "")
		if !result.Allowed() {
			t.Errorf("open -> assigned should be allowed, got %s", result.Outcome)
		}
	})

	t.Run("role never checked on fallback", func(t *testing.T) {
		result := engine.Validate(vulnerability.StatusOpen, vulnerability.StatusFalsePositive, RoleDeveloper)
		if !result.Allowed() {
			t.Errorf("fallback table must not gate on role, got %s", result.Outcome)
		}
	})

	t.Run("missing edge rejected", func(t *testing.T) {
		result := engine.Validate(vulnerability.StatusFixed, vulnerability.StatusVerifying, "")
		if result.Outcome != OutcomeNoEdge {
			t.Errorf("fixed -> verifying should have no edge, got %s", result.Outcome)
		}
	})

	t.Run("no terminal state", func(t *testing.T) {
		for _, status := range vulnerability.AllStatuses() {
			if len(engine.AvailableTransitions(status, "")) == 0 {
				t.Errorf("status %s has no outbound edge", status)
			}
		}
	})
}

func TestEngine_ConfiguredEdges(t *testing.T) {
	cfg := &Config{
		Edges: []Edge{
			{From: vulnerability.StatusOpen, To: vulnerability.StatusAssigned},
			{From: vulnerability.StatusOpen, To: vulnerability.StatusFalsePositive, RequiredRole: RoleSecurityEngineer},
			{From: vulnerability.StatusOpen, To: vulnerability.StatusClosed, RequiredRole: RoleProjectAdmin},
		},
	}
	engine := NewEngine(cfg)

	t.Run("ungated edge allowed", func(t *testing.T) {
		result := engine.Validate(vulnerability.StatusOpen, vulnerability.StatusAssigned, RoleDeveloper)
		if !result.Allowed() {
			t.Errorf("got %s, want allowed", result.Outcome)
		}
	})

	t.Run("insufficient role distinguished from missing edge", func(t *testing.T) {
		result := engine.Validate(vulnerability.StatusOpen, vulnerability.StatusFalsePositive, RoleDeveloper)
		if result.Outcome != OutcomeRoleInsufficient {
			t.Errorf("got %s, want role_insufficient", result.Outcome)
		}
		if result.RequiredRole != RoleSecurityEngineer {
			t.Errorf("RequiredRole = %s, want security_engineer", result.RequiredRole)
		}
	})

	t.Run("higher role satisfies lower requirement", func(t *testing.T) {
		result := engine.Validate(vulnerability.StatusOpen, vulnerability.StatusFalsePositive, RoleOrgAdmin)
		if !result.Allowed() {
			t.Errorf("got %s, want allowed", result.Outcome)
		}
	})

	t.Run("empty role bypasses role check but not edge check", func(t *testing.T) {
		if result := engine.Validate(vulnerability.StatusOpen, vulnerability.StatusClosed, ""); !result.Allowed() {
			t.Errorf("system actor should bypass role gate, got %s", result.Outcome)
		}
		if result := engine.Validate(vulnerability.StatusFixed, vulnerability.StatusVerifying, ""); result.Outcome != OutcomeNoEdge {
			t.Errorf("system actor must not bypass edge check, got %s", result.Outcome)
		}
	})

	t.Run("available transitions filtered by role", func(t *testing.T) {
		targets := engine.AvailableTransitions(vulnerability.StatusOpen, RoleDeveloper)
		if len(targets) != 1 || targets[0] != vulnerability.StatusAssigned {
			t.Errorf("developer targets = %v, want [assigned]", targets)
		}

		targets = engine.AvailableTransitions(vulnerability.StatusOpen, RoleSuperAdmin)
		if len(targets) != 3 {
			t.Errorf("super_admin targets = %v, want 3 entries", targets)
		}
	})
}

func TestRole_Hierarchy(t *testing.T) {
	roles := AllRoles()
	for i := 1; i < len(roles); i++ {
		if roles[i].Level() <= roles[i-1].Level() {
			t.Errorf("role %s should outrank %s", roles[i], roles[i-1])
		}
	}

	if !RoleSuperAdmin.Meets(RoleDeveloper) {
		t.Error("super_admin should meet developer requirement")
	}
	if RoleDeveloper.Meets(RoleSecurityEngineer) {
		t.Error("developer should not meet security_engineer requirement")
	}
	if !RoleDeveloper.Meets("") {
		t.Error("empty requirement should be met by anyone")
	}
}

func TestParseConfig_YAML(t *testing.T) {
	data := []byte(`
edges:
  - from: open
    to: assigned
  - from: open
    to: false_positive
    required_role: security_engineer
states:
  open:
    label: Open
    color: "#e5484d"
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if len(cfg.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(cfg.Edges))
	}
	if cfg.Edges[1].RequiredRole != RoleSecurityEngineer {
		t.Errorf("required_role = %s, want security_engineer", cfg.Edges[1].RequiredRole)
	}
	if cfg.States[vulnerability.StatusOpen].Label != "Open" {
		t.Errorf("state label = %s, want Open", cfg.States[vulnerability.StatusOpen].Label)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown status": `
edges:
  - from: open
    to: resolved
`,
		"unknown role": `
edges:
  - from: open
    to: fixed
    required_role: admin
`,
		"duplicate edge": `
edges:
  - from: open
    to: fixed
  - from: open
    to: fixed
`,
		"self transition": `
edges:
  - from: open
    to: open
`,
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(data)); err == nil {
				t.Error("ParseConfig() should fail")
			}
		})
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() invalid: %v", err)
	}
	if len(cfg.States) != len(vulnerability.AllStatuses()) {
		t.Errorf("states = %d, want %d", len(cfg.States), len(vulnerability.AllStatuses()))
	}
}
