package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/deploykit/manager/internal/model"
)

// Error kinds reported in the "context.kind" field of error responses.
const (
	KindAuthentication     = "AuthenticationError"
	KindAuthorization      = "AuthorizationError"
	KindUnsupportedVersion = "UnsupportedVersion"
)

// writeError writes the standard error envelope. Middleware cannot use the
// handler package's helpers without an import cycle.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    status,
			Message: message,
			Context: map[string]interface{}{"kind": kind},
		},
	})
}
