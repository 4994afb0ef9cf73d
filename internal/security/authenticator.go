package security

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/deploykit/manager/internal/model"
)

// Credential headers.
const (
	HeaderAuthorization = "Authorization"
	HeaderToken         = "Authentication-Token"
)

// Authenticator verifies one kind of credential.
//
// Return values:
//   - (user, nil): credential present and verified
//   - (nil, nil): credential not present, try the next authenticator
//   - (nil, err): credential present but verification failed
type Authenticator interface {
	Method() string
	Authenticate(ctx context.Context, header http.Header) (*model.User, error)
}

// PasswordAuthenticator verifies HTTP Basic credentials against the user store.
type PasswordAuthenticator struct {
	store  *UserStore
	hasher PasswordHasher
}

// NewPasswordAuthenticator creates a Basic-auth authenticator.
func NewPasswordAuthenticator(store *UserStore, hasher PasswordHasher) *PasswordAuthenticator {
	return &PasswordAuthenticator{store: store, hasher: hasher}
}

// Method implements Authenticator.
func (a *PasswordAuthenticator) Method() string { return model.AuthMethodPassword }

// Authenticate implements Authenticator.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, header http.Header) (*model.User, error) {
	auth := header.Get(HeaderAuthorization)
	if auth == "" {
		return nil, nil
	}
	const prefix = "Basic "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		// Some other scheme; not ours.
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[len(prefix):]))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, found := a.store.User(username)
	if !found {
		return nil, ErrInvalidCredentials
	}
	if !a.hasher.Verify(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// TokenAuthenticator verifies session tokens issued by a TokenGenerator.
type TokenAuthenticator struct {
	store  *UserStore
	tokens *TokenGenerator
}

// NewTokenAuthenticator creates a token authenticator.
func NewTokenAuthenticator(store *UserStore, tokens *TokenGenerator) *TokenAuthenticator {
	return &TokenAuthenticator{store: store, tokens: tokens}
}

// Method implements Authenticator.
func (a *TokenAuthenticator) Method() string { return model.AuthMethodToken }

// Authenticate implements Authenticator.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, header http.Header) (*model.User, error) {
	value := strings.TrimSpace(header.Get(HeaderToken))
	if value == "" {
		return nil, nil
	}

	username, err := a.tokens.Verify(value)
	if err != nil {
		return nil, err
	}
	user, ok := a.store.User(username)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return user, nil
}
