package security

import (
	"context"
	"fmt"
	"net/http"

	"github.com/deploykit/manager/internal/model"
)

// Chain runs authenticators in order. The first authenticator whose
// credential is present decides the outcome: success returns the identity,
// failure is final and later authenticators are not consulted.
type Chain struct {
	authenticators []Authenticator
	roles          RoleLoader
}

// NewChain creates a chain over authenticators in evaluation order.
func NewChain(roles RoleLoader, authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators, roles: roles}
}

// Authenticate resolves the request's identity. Every error it returns
// satisfies errors.Is(err, ErrAuthentication).
func (c *Chain) Authenticate(ctx context.Context, header http.Header) (*model.Identity, error) {
	for _, a := range c.authenticators {
		user, err := a.Authenticate(ctx, header)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Method(), err)
		}
		if user == nil {
			continue
		}

		groups := make([]string, len(user.Groups))
		copy(groups, user.Groups)
		return &model.Identity{
			Username:   user.Username,
			Groups:     groups,
			Roles:      c.roles.ResolveRoles(user),
			AuthMethod: a.Method(),
		}, nil
	}
	return nil, ErrNoCredentials
}

// Len returns the number of authenticators in the chain.
func (c *Chain) Len() int {
	return len(c.authenticators)
}
