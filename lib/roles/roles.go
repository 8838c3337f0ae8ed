// Package roles models the environments and roles an operator can assume,
// and builds that catalog from a SAML assertion or from the parameter store
// directories.
package roles

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	DefaultRolePrefix = "figgy-"
	// RolePrefixEnv overrides DefaultRolePrefix for directory built roles.
	RolePrefixEnv = "FIGGY_ROLE_PREFIX_OVERRIDE"
)

// RolePrefix returns the prefix of full role names, honoring RolePrefixEnv.
func RolePrefix() string {
	if prefix, ok := os.LookupEnv(RolePrefixEnv); ok && prefix != "" {
		return prefix
	}
	return DefaultRolePrefix
}

// RunEnv is a named deployment environment backed by one AWS account.
type RunEnv struct {
	Env       string
	AccountID string
}

// Equal compares environments by name only.
func (e RunEnv) Equal(o RunEnv) bool {
	return e.Env == o.Env
}

func (e RunEnv) String() string {
	return e.Env
}

// Role is a logical role name and the IAM role name that carries it.
type Role struct {
	Name     string
	FullName string
}

func (r Role) String() string {
	return r.Name
}

// AssumableRole is one role in one environment the operator may assume.
type AssumableRole struct {
	RunEnv    RunEnv
	Role      Role
	AccountID string
	// PrincipalARN is the SAML identity provider ARN; empty for roles that
	// are assumed directly.
	PrincipalARN string
	// ARN is the role ARN as handed out by the identity provider, if any.
	ARN string
}

// RoleARN returns the ARN of the IAM role.
func (r AssumableRole) RoleARN() string {
	if r.ARN != "" {
		return r.ARN
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", r.AccountID, r.Role.FullName)
}

// Key identifies the role in the session cache.
func (r AssumableRole) Key() string {
	if r.AccountID == "" {
		return r.Role.FullName
	}
	return r.AccountID + ":" + r.Role.FullName
}

func (r AssumableRole) String() string {
	return r.RunEnv.Env + "/" + r.Role.Name
}

// Matches reports whether the role is the selection env/role.
func (r AssumableRole) Matches(env, role string) bool {
	return r.RunEnv.Env == env && r.Role.Name == role
}

// Catalog is the set of roles an operator may assume.
type Catalog []AssumableRole

// Find looks up a selection. The error names the valid choices.
func (c Catalog) Find(env, role string) (AssumableRole, error) {
	for _, r := range c {
		if r.Matches(env, role) {
			return r, nil
		}
	}
	return AssumableRole{}, &SelectionError{Env: env, Role: role, Choices: c.Selections()}
}

// Selections lists every env/role pair, sorted.
func (c Catalog) Selections() []string {
	out := make([]string, 0, len(c))
	for _, r := range c {
		out = append(out, r.String())
	}
	sort.Strings(out)
	return out
}

// Envs lists the distinct environments, sorted.
func (c Catalog) Envs() []RunEnv {
	seen := map[string]bool{}
	var envs []RunEnv
	for _, r := range c {
		if seen[r.RunEnv.Env] {
			continue
		}
		seen[r.RunEnv.Env] = true
		envs = append(envs, r.RunEnv)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Env < envs[j].Env })
	return envs
}

// WithRole keeps the roles named role, one per environment.
func (c Catalog) WithRole(role string) Catalog {
	var out Catalog
	for _, r := range c {
		if r.Role.Name == role {
			out = append(out, r)
		}
	}
	return out
}

// SelectionError is returned for an env/role pair missing from a Catalog.
type SelectionError struct {
	Env     string
	Role    string
	Choices []string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("role %s is not available in environment %s; choose one of: %s",
		e.Role, e.Env, strings.Join(e.Choices, ", "))
}
