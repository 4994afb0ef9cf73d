package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByUser limits requests per authenticated username. It must run
// after Authenticate, so only verified identities get their own bucket;
// requests without one are keyed by client IP.
func RateLimitByUser(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(identityKey),
	)
}

func identityKey(r *http.Request) (string, error) {
	if id := GetIdentity(r.Context()); id != nil {
		return "user:" + id.Username, nil
	}
	return httprate.KeyByIP(r)
}
