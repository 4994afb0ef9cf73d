package handler

import (
	"log/slog"
	"net/http"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/security"
	"github.com/deploykit/manager/internal/server/middleware"
)

// SystemHandler serves the manager's own endpoints: token issuance and
// service status.
type SystemHandler struct {
	store  *config.Store
	sec    *security.Service
	policy query.VersionPolicy
	logger *slog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store *config.Store, sec *security.Service, policy query.VersionPolicy, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		store:  store,
		sec:    sec,
		policy: policy,
		logger: logger,
	}
}

// IssueToken returns a session token for the authenticated identity. The
// token is sent back in the Authentication-Token header on later requests.
// GET /api/{version}/tokens
func (h *SystemHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, middleware.KindAuthentication, "Authentication failed")
		return
	}

	token, err := h.sec.IssueToken(identity)
	if err != nil {
		status, kind := classifyError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("token issuance failed", "user", identity.Username, "error", err)
			writeError(w, status, kind, "Failed to issue token")
			return
		}
		writeError(w, status, kind, err.Error())
		return
	}

	h.logger.Info("token issued",
		"user", identity.Username,
		"auth_method", identity.AuthMethod,
		"expires_at", token.ExpiresAt,
	)
	writeJSON(w, http.StatusOK, model.TokenResponse{
		Value:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Username:  identity.Username,
	})
}

// Status reports whether the service is running, which API versions it
// serves, and how many records each collection holds.
// GET /api/{version}/status
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := model.StatusResponse{
		Status:          "running",
		SecurityEnabled: h.sec.Enabled(),
		APIVersions:     h.policy.Versions(),
	}

	counts, err := h.store.Counts(r.Context())
	if err != nil {
		h.logger.Warn("status: counting resources failed", "error", err)
		resp.Status = "degraded"
	} else {
		resp.Resources = counts
	}

	writeJSON(w, http.StatusOK, resp)
}
