package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deploykit/manager/internal/query"
)

type contextKeyVersion string

// VersionKey is the context key for the negotiated API version.
const VersionKey contextKeyVersion = "api_version"

// VersionParam is the chi URL parameter holding the version path segment.
const VersionParam = "version"

// Version returns an HTTP middleware that negotiates the API version from the
// {version} URL segment ("v1", "v2", ...). Versions outside the policy are
// rejected with 400 before any authentication runs.
func Version(policy query.VersionPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, VersionParam)
			v, err := policy.Negotiate(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, KindUnsupportedVersion, "Unsupported API version: "+raw)
				return
			}
			ctx := context.WithValue(r.Context(), VersionKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FixedVersion returns an HTTP middleware that pins the API version, used
// for the unprefixed legacy routes.
func FixedVersion(v int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), VersionKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetVersion extracts the negotiated API version from the context. Returns
// query.VersionLegacy when none was negotiated.
func GetVersion(ctx context.Context) int {
	if v, ok := ctx.Value(VersionKey).(int); ok {
		return v
	}
	return query.VersionLegacy
}
