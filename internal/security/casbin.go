package security

import (
	"fmt"
	"sort"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	"github.com/deploykit/manager/internal/config"
)

// casbinModelContent maps a role and an action onto the roles document: a
// policy line per (role, permission pattern) and glob matching on actions.
const casbinModelContent = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && globMatch(r.act, p.act)
`

// CasbinProvider evaluates the roles document with a Casbin enforcer. It
// reaches the same decisions as RoleBasedProvider.
type CasbinProvider struct {
	enforcer *casbin.SyncedEnforcer
}

// NewCasbinProvider loads every role permission into an in-memory enforcer.
func NewCasbinProvider(roles *config.RolesConfig) (*CasbinProvider, error) {
	m, err := casbinmodel.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	names := make([]string, 0, len(roles.Roles))
	for name := range roles.Roles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, perm := range roles.Roles[name].Permissions {
			if _, err := enforcer.AddPolicy(name, perm); err != nil {
				return nil, fmt.Errorf("add casbin policy %s %s: %w", name, perm, err)
			}
		}
	}
	return &CasbinProvider{enforcer: enforcer}, nil
}

// Authorize implements AuthorizationProvider.
func (p *CasbinProvider) Authorize(roles []string, action string) bool {
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, action)
		if err == nil && ok {
			return true
		}
	}
	return false
}
