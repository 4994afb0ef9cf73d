// Package security authenticates requests against a configured chain of
// authenticators, resolves each user's effective roles, issues and verifies
// session tokens, and authorizes actions against a role permission table.
package security

import (
	"errors"
	"fmt"
)

// ErrAuthentication is the root of every authentication failure. Callers
// map it to a single 401 response; the specific cause is kept for logs.
var ErrAuthentication = errors.New("authentication failed")

var (
	ErrNoCredentials      = fmt.Errorf("%w: no credentials provided", ErrAuthentication)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrTokenInvalid       = fmt.Errorf("%w: token invalid", ErrAuthentication)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrAuthentication)
)

var (
	// ErrAuthorization means the identity is known but none of its roles
	// permit the requested action.
	ErrAuthorization = errors.New("not authorized")

	// ErrUnknownGroup means a user references a group the store does not define.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrMissingCredential means a user or token secret has no usable value,
	// typically because the environment variable it references is unset.
	ErrMissingCredential = errors.New("missing credential")

	// ErrUnknownVariant means a security component names an unsupported type.
	ErrUnknownVariant = errors.New("unknown security component type")

	// ErrSecurityDisabled is returned by operations that need security enabled.
	ErrSecurityDisabled = errors.New("security is disabled")
)
