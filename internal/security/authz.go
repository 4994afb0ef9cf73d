package security

import (
	"path"

	"github.com/deploykit/manager/internal/config"
)

// Actions outside the resource collections.
const (
	ActionIssueToken = "tokens:issue"
	ActionStatus     = "status:get"
)

// ListAction is the action checked before listing a collection.
func ListAction(collection string) string { return collection + ":list" }

// GetAction is the action checked before reading one record of a collection.
func GetAction(collection string) string { return collection + ":get" }

// AuthorizationProvider decides whether any of roles permits action.
type AuthorizationProvider interface {
	Authorize(roles []string, action string) bool
}

// RoleBasedProvider grants an action when any permission pattern of any of
// the caller's roles matches it. Patterns use path.Match syntax, so "*"
// matches every action.
type RoleBasedProvider struct {
	permissions map[string][]string
}

// NewRoleBasedProvider builds a provider from a roles document.
func NewRoleBasedProvider(roles *config.RolesConfig) *RoleBasedProvider {
	perms := make(map[string][]string, len(roles.Roles))
	for name, def := range roles.Roles {
		perms[name] = append([]string(nil), def.Permissions...)
	}
	return &RoleBasedProvider{permissions: perms}
}

// Authorize implements AuthorizationProvider.
func (p *RoleBasedProvider) Authorize(roles []string, action string) bool {
	for _, role := range roles {
		for _, pattern := range p.permissions[role] {
			if ok, err := path.Match(pattern, action); err == nil && ok {
				return true
			}
		}
	}
	return false
}
