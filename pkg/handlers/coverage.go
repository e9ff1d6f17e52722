package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/auth"
	"github.com/traceway-io/traceway-engine/pkg/engine"
	"github.com/traceway-io/traceway-engine/pkg/models"
)

// CoverageHandler handles test coverage reporting HTTP requests.
type CoverageHandler struct {
	coverage engine.CoverageService
	logger   *zap.Logger
}

// NewCoverageHandler creates a new coverage handler.
func NewCoverageHandler(coverage engine.CoverageService, logger *zap.Logger) *CoverageHandler {
	return &CoverageHandler{coverage: coverage, logger: logger}
}

// RegisterRoutes registers the coverage handler's routes on the given mux.
func (h *CoverageHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/coverage",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Summary)))
}

// Summary handles GET /api/projects/{pid}/coverage
// Optional query parameters classification and priority narrow the run.
func (h *CoverageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	filter := models.CoverageFilter{
		Classification: models.FitStatus(r.URL.Query().Get("classification")),
		Priority:       r.URL.Query().Get("priority"),
	}
	if filter.Classification != "" && !filter.Classification.Valid() {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_classification", "Unknown classification"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	summary, err := h.coverage.CoverageSummary(r.Context(), sc, filter)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrCycleDetected):
			h.logger.Error("Requirement hierarchy contains a cycle", zap.Error(err))
			if werr := ErrorResponse(w, http.StatusUnprocessableEntity, "cycle_detected", "Requirement hierarchy contains a cycle"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
		case errors.Is(err, apperrors.ErrScopeMissing):
			if werr := ErrorResponse(w, http.StatusBadRequest, "missing_scope", "Tenant and project scope required"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
		default:
			h.logger.Error("Coverage run failed", zap.Error(err))
			if werr := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Coverage run failed"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, summary); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
