package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/server/middleware"
)

// ResourceHandler serves the read-only list and get endpoints of every
// resource kind.
type ResourceHandler struct {
	store  *config.Store
	engine *query.Engine
	opts   query.ParseOptions
	logger *slog.Logger
}

// NewResourceHandler creates a new ResourceHandler.
func NewResourceHandler(store *config.Store, engine *query.Engine, opts query.ParseOptions, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{
		store:  store,
		engine: engine,
		opts:   opts,
		logger: logger,
	}
}

// List returns the list handler for one kind.
// GET /api/{version}/{collection}
//
// The body is always a JSON array. Under API version 2 and later the
// X-Total-Count, X-Offset and X-Size headers describe the returned page.
func (h *ResourceHandler) List(info model.KindInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := middleware.GetVersion(r.Context())

		q, err := query.ParseListQuery(info.Kind, r.URL.Query(), version, h.opts)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		res, err := h.engine.List(r.Context(), h.store.Collection(info.Kind), q)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		if res.Paged {
			setPageHeaders(w, res)
		}
		writeJSON(w, http.StatusOK, res.Items)
	}
}

// Get returns the get-by-id handler for one kind.
// GET /api/{version}/{collection}/{id}
//
// Under API version 2 and later _include projects the record.
func (h *ResourceHandler) Get(info model.KindInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var include []string
		if h.engine.Policy().Active(middleware.GetVersion(r.Context())) {
			fields, err := query.ParseFieldSelection(r.URL.Query()[query.ParamInclude]...)
			if err != nil {
				writeError(w, http.StatusBadRequest, KindInvalidQueryParameter, "Invalid _include parameter: "+err.Error())
				return
			}
			include = fields
		}

		rec, err := h.store.Get(r.Context(), info.Kind, id)
		if err != nil {
			if config.IsNotFound(err) {
				writeError(w, http.StatusNotFound, KindNotFound, string(info.Kind)+" not found: "+id)
				return
			}
			h.fail(w, r, err)
			return
		}

		if len(include) > 0 {
			rec = query.Project(rec, include)
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *ResourceHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("resource request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, status, kind, "Internal server error")
		return
	}
	writeError(w, status, kind, err.Error())
}
