// Package rolereq holds the per-role context requirement tables and the
// completeness validator. The validator is a diagnostic: it reports whether
// enough data is present to reasonably request a decision from a role, and
// never blocks a gate directly.
package rolereq

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gatewise/gatewise/pkg/types"
)

var ErrUnknownRole = errors.New("unknown role")

// Role declares a participant category: where it must decide and which
// dot-paths of the work item data tree it needs.
type Role struct {
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	DecidesAt      []string `yaml:"decides_at"`
	RequiredPaths  []string `yaml:"required_paths"`
	DesirablePaths []string `yaml:"desirable_paths"`
	UnneededPaths  []string `yaml:"unneeded_paths"`
	OutputFields   []string `yaml:"output_fields"`
}

// Table is an immutable, versioned role requirement configuration. It is
// loaded once and passed explicitly into each validation call.
type Table struct {
	Version string `yaml:"version"`
	Roles   []Role `yaml:"roles"`

	Hash string `yaml:"-"`
}

// Result is the outcome of a completeness validation for one role.
type Result struct {
	RoleID          string   `json:"role_id"`
	CompletenessPct int      `json:"completeness_pct"`
	Present         []string `json:"present"`
	Missing         []string `json:"missing"`
	Desirable       []string `json:"desirable_missing,omitempty"`
}

// Role returns the declared role with the given id.
func (t Table) Role(roleID string) (Role, bool) {
	for _, r := range t.Roles {
		if r.ID == roleID {
			return r, true
		}
	}
	return Role{}, false
}

// RolesDecidingAt returns the ids of every role required to decide at the
// given phase, in declaration order.
func (t Table) RolesDecidingAt(phase types.Phase) []string {
	var ids []string
	for _, r := range t.Roles {
		for _, p := range r.DecidesAt {
			if types.Phase(p) == phase {
				ids = append(ids, r.ID)
				break
			}
		}
	}
	return ids
}

// ValidateContext walks every required dot-path of the role through the data
// tree. A missing intermediate node counts as absent. Completeness is
// present/total*100, and 100 when the role declares no required paths.
func (t Table) ValidateContext(roleID string, tree map[string]any) (Result, error) {
	role, ok := t.Role(roleID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}

	result := Result{RoleID: roleID, Present: []string{}, Missing: []string{}}

	for _, path := range role.RequiredPaths {
		if pathPresent(tree, path) {
			result.Present = append(result.Present, path)
		} else {
			result.Missing = append(result.Missing, path)
		}
	}
	for _, path := range role.DesirablePaths {
		if !pathPresent(tree, path) {
			result.Desirable = append(result.Desirable, path)
		}
	}

	sort.Strings(result.Present)
	sort.Strings(result.Missing)
	sort.Strings(result.Desirable)

	total := len(role.RequiredPaths)
	if total == 0 {
		result.CompletenessPct = 100
		return result, nil
	}
	result.CompletenessPct = len(result.Present) * 100 / total
	return result, nil
}

// pathPresent walks a dot-path through nested map nodes. A leaf is present
// when it exists and is neither nil nor an empty string.
func pathPresent(tree map[string]any, path string) bool {
	node := any(tree)
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return false
		}
		node, ok = m[part]
		if !ok {
			return false
		}
	}

	switch v := node.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return true
	}
}
