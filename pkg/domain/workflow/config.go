package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vulnwatch/api/pkg/domain/vulnerability"
)

// Edge is a legal transition between two finding statuses. An empty
// RequiredRole means any actor may take the edge.
type Edge struct {
	From         vulnerability.Status `yaml:"from"`
	To           vulnerability.Status `yaml:"to"`
	RequiredRole Role                 `yaml:"required_role,omitempty"`
}

// StateMeta holds display metadata for a finding status.
type StateMeta struct {
	Label       string `yaml:"label"`
	Color       string `yaml:"color"`
	Description string `yaml:"description,omitempty"`
}

// Config is the data-driven transition table. New states or role gates
// are config changes, not code changes.
type Config struct {
	Edges  []Edge                             `yaml:"edges"`
	States map[vulnerability.Status]StateMeta `yaml:"states"`
}

// LoadConfig reads and validates a workflow configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates workflow configuration YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse workflow config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for unknown statuses, unknown roles
// and duplicate edges.
func (c *Config) Validate() error {
	seen := make(map[[2]vulnerability.Status]bool, len(c.Edges))
	for i, e := range c.Edges {
		if !e.From.IsValid() {
			return fmt.Errorf("edge %d: invalid from status %q", i, e.From)
		}
		if !e.To.IsValid() {
			return fmt.Errorf("edge %d: invalid to status %q", i, e.To)
		}
		if e.From == e.To {
			return fmt.Errorf("edge %d: self transition %q", i, e.From)
		}
		if e.RequiredRole != "" && !e.RequiredRole.IsValid() {
			return fmt.Errorf("edge %d: invalid required role %q", i, e.RequiredRole)
		}
		key := [2]vulnerability.Status{e.From, e.To}
		if seen[key] {
			return fmt.Errorf("edge %d: duplicate edge %s -> %s", i, e.From, e.To)
		}
		seen[key] = true
	}

	for status := range c.States {
		if !status.IsValid() {
			return fmt.Errorf("states: unknown status %q", status)
		}
	}

	return nil
}

// fallbackTransitions is the compiled-in adjacency table used when no
// configuration is present. Role checks do not apply to it. No status is
// terminal: resolved statuses can always be reopened.
var fallbackTransitions = map[vulnerability.Status][]vulnerability.Status{
	vulnerability.StatusOpen: {
		vulnerability.StatusAssigned,
		vulnerability.StatusInProgress,
		vulnerability.StatusFixed,
		vulnerability.StatusClosed,
		vulnerability.StatusIgnored,
		vulnerability.StatusFalsePositive,
		vulnerability.StatusAccepted,
	},
	vulnerability.StatusAssigned: {
		vulnerability.StatusOpen,
		vulnerability.StatusInProgress,
		vulnerability.StatusFixed,
		vulnerability.StatusIgnored,
		vulnerability.StatusFalsePositive,
		vulnerability.StatusAccepted,
	},
	vulnerability.StatusInProgress: {
		vulnerability.StatusOpen,
		vulnerability.StatusAssigned,
		vulnerability.StatusFixSubmitted,
		vulnerability.StatusFixed,
	},
	vulnerability.StatusFixSubmitted: {
		vulnerability.StatusVerifying,
		vulnerability.StatusInProgress,
	},
	vulnerability.StatusVerifying: {
		vulnerability.StatusFixed,
		vulnerability.StatusInProgress,
	},
	vulnerability.StatusFixed: {
		vulnerability.StatusClosed,
		vulnerability.StatusOpen,
	},
	vulnerability.StatusClosed: {
		vulnerability.StatusOpen,
	},
	vulnerability.StatusIgnored: {
		vulnerability.StatusOpen,
	},
	vulnerability.StatusFalsePositive: {
		vulnerability.StatusOpen,
	},
	vulnerability.StatusAccepted: {
		vulnerability.StatusOpen,
	},
}

// DefaultConfig returns the built-in edge set with role gates applied to
// the sensitive edges. It mirrors the fallback adjacency and is what the
// admin CLI seeds when no configuration file exists yet.
func DefaultConfig() *Config {
	var edges []Edge
	for from, targets := range fallbackTransitions {
		for _, to := range targets {
			edges = append(edges, Edge{From: from, To: to, RequiredRole: defaultEdgeRole(from, to)})
		}
	}

	return &Config{
		Edges: edges,
		States: map[vulnerability.Status]StateMeta{
			vulnerability.StatusOpen:          {Label: "Open", Color: "#e5484d", Description: "Reported and awaiting triage"},
			vulnerability.StatusAssigned:      {Label: "Assigned", Color: "#f76b15", Description: "Assigned to an owner"},
			vulnerability.StatusInProgress:    {Label: "In Progress", Color: "#ffb224", Description: "Remediation underway"},
			vulnerability.StatusFixSubmitted:  {Label: "Fix Submitted", Color: "#8e4ec6", Description: "Fix awaiting review"},
			vulnerability.StatusVerifying:     {Label: "Verifying", Color: "#0091ff", Description: "Fix under verification"},
			vulnerability.StatusFixed:         {Label: "Fixed", Color: "#30a46c", Description: "No longer observed or verified fixed"},
			vulnerability.StatusClosed:        {Label: "Closed", Color: "#687076", Description: "Closed without further action"},
			vulnerability.StatusIgnored:       {Label: "Ignored", Color: "#687076", Description: "Deliberately ignored"},
			vulnerability.StatusFalsePositive: {Label: "False Positive", Color: "#687076", Description: "Incorrectly reported"},
			vulnerability.StatusAccepted:      {Label: "Accepted Risk", Color: "#ad7f58", Description: "Risk formally accepted"},
		},
	}
}

// defaultEdgeRole returns the role gate applied to an edge in the
// default configuration.
func defaultEdgeRole(from, to vulnerability.Status) Role {
	switch to {
	case vulnerability.StatusIgnored, vulnerability.StatusFalsePositive, vulnerability.StatusAccepted:
		return RoleSecurityEngineer
	case vulnerability.StatusClosed:
		return RoleProjectAdmin
	}
	// Reopening a resolved finding needs a security engineer.
	if to == vulnerability.StatusOpen && !from.IsUnresolved() {
		return RoleSecurityEngineer
	}
	return ""
}
