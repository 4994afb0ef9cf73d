package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/security"
)

// Error kinds reported in the "context.kind" field of error responses.
const (
	KindInvalidQueryParameter = "InvalidQueryParameter"
	KindUnsupportedVersion    = "UnsupportedVersion"
	KindNotFound              = "NotFound"
	KindSecurityDisabled      = "SecurityDisabled"
	KindInternal              = "InternalError"
)

// Pagination headers set on list responses from API version 2 on.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderOffset     = "X-Offset"
	HeaderSize       = "X-Size"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope, tagging it with kind.
func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: map[string]interface{}{"kind": kind},
		},
	})
}

// classifyError maps a service error to an HTTP status and error kind.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, query.ErrInvalidQueryParameter):
		return http.StatusBadRequest, KindInvalidQueryParameter
	case errors.Is(err, query.ErrUnsupportedVersion):
		return http.StatusBadRequest, KindUnsupportedVersion
	case errors.Is(err, config.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, security.ErrSecurityDisabled):
		return http.StatusBadRequest, KindSecurityDisabled
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// setPageHeaders reports the page geometry of a paged list result.
func setPageHeaders(w http.ResponseWriter, res query.Result) {
	w.Header().Set(HeaderTotalCount, strconv.Itoa(res.Total))
	w.Header().Set(HeaderOffset, strconv.Itoa(res.Offset))
	w.Header().Set(HeaderSize, strconv.Itoa(res.Size))
}
