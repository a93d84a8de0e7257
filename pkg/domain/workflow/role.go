package workflow

import (
	"fmt"
	"strings"
)

// Role represents an actor role in the workflow role hierarchy.
type Role string

const (
	RoleDeveloper        Role = "developer"
	RoleSecurityEngineer Role = "security_engineer"
	RoleProjectAdmin     Role = "project_admin"
	RoleOrgAdmin         Role = "org_admin"
	RoleSuperAdmin       Role = "super_admin"
)

// AllRoles returns all valid roles, lowest first.
func AllRoles() []Role {
	return []Role{
		RoleDeveloper,
		RoleSecurityEngineer,
		RoleProjectAdmin,
		RoleOrgAdmin,
		RoleSuperAdmin,
	}
}

// Level returns the hierarchy level of the role. Higher levels satisfy
// edges requiring lower levels. Unknown roles have level 0 and satisfy
// nothing.
func (r Role) Level() int {
	switch r {
	case RoleDeveloper:
		return 1
	case RoleSecurityEngineer:
		return 2
	case RoleProjectAdmin:
		return 3
	case RoleOrgAdmin:
		return 4
	case RoleSuperAdmin:
		return 5
	default:
		return 0
	}
}

// IsValid checks if the role is valid.
func (r Role) IsValid() bool {
	return r.Level() > 0
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Meets reports whether the role satisfies the required role under the
// hierarchy. An empty required role is satisfied by anyone.
func (r Role) Meets(required Role) bool {
	if required == "" {
		return true
	}
	return r.Level() >= required.Level()
}

// ParseRole parses a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return r, nil
}
