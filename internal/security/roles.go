package security

import (
	"sort"

	"github.com/deploykit/manager/internal/model"
)

// RoleLoader computes a user's effective role set.
type RoleLoader interface {
	ResolveRoles(user *model.User) []string
}

// DefaultRoleLoader returns the union of a user's direct roles and the roles
// of every group the user belongs to, sorted and without duplicates.
type DefaultRoleLoader struct {
	store *UserStore
}

// NewDefaultRoleLoader creates a role loader backed by store.
func NewDefaultRoleLoader(store *UserStore) *DefaultRoleLoader {
	return &DefaultRoleLoader{store: store}
}

// ResolveRoles implements RoleLoader. A user with no roles and no groups
// resolves to an empty, non-nil set.
func (l *DefaultRoleLoader) ResolveRoles(user *model.User) []string {
	seen := make(map[string]struct{})
	for _, r := range user.Roles {
		seen[r] = struct{}{}
	}
	for _, name := range user.Groups {
		g, ok := l.store.Group(name)
		if !ok {
			continue
		}
		for _, r := range g.Roles {
			seen[r] = struct{}{}
		}
	}

	roles := make([]string, 0, len(seen))
	for r := range seen {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
