package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/auth"
	"github.com/traceway-io/traceway-engine/pkg/engine"
)

// ImpactHandler handles upstream defect impact HTTP requests.
type ImpactHandler struct {
	impact engine.ImpactService
	logger *zap.Logger
}

// NewImpactHandler creates a new impact handler.
func NewImpactHandler(impact engine.ImpactService, logger *zap.Logger) *ImpactHandler {
	return &ImpactHandler{impact: impact, logger: logger}
}

// RegisterRoutes registers the impact handler's routes on the given mux.
func (h *ImpactHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/impact",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Summary)))
}

// Summary handles GET /api/projects/{pid}/impact
// Requires a defect_ids query parameter with a comma-separated list of ids.
func (h *ImpactHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	defectIDs, ok := h.parseDefectIDs(w, r)
	if !ok {
		return
	}

	summary, err := h.impact.UpstreamImpact(r.Context(), sc, defectIDs)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrScopeMissing):
			if werr := ErrorResponse(w, http.StatusBadRequest, "missing_scope", "Tenant and project scope required"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
		default:
			h.logger.Error("Impact analysis failed", zap.Error(err))
			if werr := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Impact analysis failed"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, summary); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ImpactHandler) parseDefectIDs(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
	raw := r.URL.Query().Get("defect_ids")
	if raw == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_defect_ids", "defect_ids query parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_defect_id", "Invalid defect ID format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
