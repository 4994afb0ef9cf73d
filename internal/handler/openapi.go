package handler

import (
	"net/http"
	"sync"

	"github.com/deploykit/manager/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI 3.1 document describing every list, get,
// token and status endpoint. The document depends only on the resource kinds
// and the server configuration, so it is generated once.
type OpenAPIHandler struct {
	opts openapi.Options

	once sync.Once
	data []byte
	err  error
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(opts openapi.Options) *OpenAPIHandler {
	return &OpenAPIHandler{opts: opts}
}

// ServeSpec returns the OpenAPI document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.data, h.err = openapi.Generate(h.opts).MarshalJSON()
	})
	if h.err != nil {
		writeError(w, http.StatusInternalServerError, KindInternal, "Failed to generate OpenAPI document: "+h.err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.data)
}
