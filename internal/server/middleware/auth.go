package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/security"
)

type contextKeyAuth string

// IdentityKey is the context key for the authenticated identity.
const IdentityKey contextKeyAuth = "identity"

// Authenticate returns an HTTP middleware that runs the security service's
// authentication chain over the request headers:
//
//  1. Authorization: Basic <base64(username:password)>
//  2. Authentication-Token: <token>
//
// On success the resolved Identity is attached to the request context. Every
// failure produces the same 401 body; the specific reason (expired token,
// bad password, no credentials) is only logged.
func Authenticate(sec *security.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := sec.Authenticate(r.Context(), r.Header)
			if err != nil {
				if !errors.Is(err, security.ErrAuthentication) {
					logger.Error("authentication chain failed", "error", err, "request_id", GetRequestID(r.Context()))
				} else {
					logger.Warn("authentication rejected",
						"reason", err.Error(),
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
				}
				writeError(w, http.StatusUnauthorized, KindAuthentication, "Authentication failed")
				return
			}

			setRequestUser(r.Context(), identity.Username)
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize returns an HTTP middleware that requires the authenticated
// identity's roles to permit action. It must be used after Authenticate in
// the middleware chain.
func Authorize(sec *security.Service, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Authorize(GetIdentity(r.Context()), action); err != nil {
				writeError(w, http.StatusForbidden, KindAuthorization, "Not authorized to perform "+action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity extracts the authenticated identity from the context.
// Returns nil if no identity is present.
func GetIdentity(ctx context.Context) *model.Identity {
	if id, ok := ctx.Value(IdentityKey).(*model.Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
