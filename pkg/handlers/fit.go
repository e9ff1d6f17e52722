package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/auth"
	"github.com/traceway-io/traceway-engine/pkg/engine"
	"github.com/traceway-io/traceway-engine/pkg/models"
)

// Fit request actions.
const (
	FitActionDecision      = "decision"
	FitActionOverride      = "override"
	FitActionClearOverride = "clear_override"
)

// FitRequest is the request body for PUT .../process-levels/{lid}/fit.
// Action "decision" records a workshop fit decision on an L4 node,
// "override" pins a status on any node, "clear_override" unpins it.
type FitRequest struct {
	Action     string           `json:"action"`
	Status     models.FitStatus `json:"status,omitempty"`
	WorkshopID uuid.UUID        `json:"workshop_id,omitempty"`
}

// FitResponse reports the step created by a decision (if any) and every fit
// status change the triggered propagation applied.
type FitResponse struct {
	Step      *models.ProcessStep  `json:"step,omitempty"`
	Mutations []models.FitMutation `json:"mutations"`
}

// DisabledRequest is the request body for PUT .../process-levels/{lid}/disabled.
type DisabledRequest struct {
	Disabled bool `json:"disabled"`
}

// FitHandler handles fit decision, override and propagation HTTP requests.
type FitHandler struct {
	propagator engine.PropagationService
	logger     *zap.Logger
}

// NewFitHandler creates a new fit handler.
func NewFitHandler(propagator engine.PropagationService, logger *zap.Logger) *FitHandler {
	return &FitHandler{propagator: propagator, logger: logger}
}

// RegisterRoutes registers the fit handler's routes on the given mux.
func (h *FitHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("PUT /api/projects/{pid}/process-levels/{lid}/fit",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.UpdateFit)))
	mux.HandleFunc("POST /api/projects/{pid}/process-levels/{lid}/propagate",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Propagate)))
	mux.HandleFunc("PUT /api/projects/{pid}/process-levels/{lid}/disabled",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.SetDisabled)))
}

// UpdateFit handles PUT /api/projects/{pid}/process-levels/{lid}/fit
// Propagation runs inline; the response carries every status change it made.
func (h *FitHandler) UpdateFit(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	levelID, ok := ParseLevelID(w, r, h.logger)
	if !ok {
		return
	}

	var req FitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var (
		step      *models.ProcessStep
		mutations []models.FitMutation
		err       error
	)

	switch req.Action {
	case FitActionDecision:
		if req.WorkshopID == uuid.Nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "missing_workshop_id", "workshop_id is required for a decision"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if !req.Status.Scored() {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_fit_status", "A decision must be fit, partial_fit or gap"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		step, mutations, err = h.propagator.RecordDecision(r.Context(), sc, levelID, req.WorkshopID, req.Status)
	case FitActionOverride:
		if !req.Status.Valid() {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_fit_status", "Unknown fit status"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		mutations, err = h.propagator.SetOverride(r.Context(), sc, levelID, req.Status)
	case FitActionClearOverride:
		mutations, err = h.propagator.ClearOverride(r.Context(), sc, levelID)
	default:
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_action", "Action must be decision, override or clear_override"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err != nil {
		h.propagationError(w, err, req.Action)
		return
	}

	if err := WriteJSON(w, http.StatusOK, FitResponse{Step: step, Mutations: mutations}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Propagate handles POST /api/projects/{pid}/process-levels/{lid}/propagate
// Recomputes the node's ancestor chain from current child statuses.
func (h *FitHandler) Propagate(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	levelID, ok := ParseLevelID(w, r, h.logger)
	if !ok {
		return
	}

	mutations, err := h.propagator.Propagate(r.Context(), sc, levelID)
	if err != nil {
		h.propagationError(w, err, "propagate")
		return
	}

	if err := WriteJSON(w, http.StatusOK, FitResponse{Mutations: mutations}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetDisabled handles PUT /api/projects/{pid}/process-levels/{lid}/disabled
// A disabled node keeps its status but drops out of ancestor aggregation.
func (h *FitHandler) SetDisabled(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	levelID, ok := ParseLevelID(w, r, h.logger)
	if !ok {
		return
	}

	var req DisabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	mutations, err := h.propagator.SetDisabled(r.Context(), sc, levelID, req.Disabled)
	if err != nil {
		h.propagationError(w, err, "set_disabled")
		return
	}

	if err := WriteJSON(w, http.StatusOK, FitResponse{Mutations: mutations}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *FitHandler) propagationError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFoundInScope):
		if werr := ErrorResponse(w, http.StatusNotFound, "not_found", "Process level not found"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	case errors.Is(err, apperrors.ErrLevelMismatch):
		if werr := ErrorResponse(w, http.StatusUnprocessableEntity, "level_mismatch", "Process hierarchy levels are inconsistent"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	case errors.Is(err, apperrors.ErrConcurrentUpdate):
		if werr := ErrorResponse(w, http.StatusConflict, "concurrent_update", "Node was modified concurrently, retry the request"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	case errors.Is(err, apperrors.ErrScopeMissing):
		if werr := ErrorResponse(w, http.StatusBadRequest, "missing_scope", "Tenant and project scope required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	default:
		h.logger.Error("Fit update failed", zap.String("action", action), zap.Error(err))
		if werr := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Fit update failed"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	}
}
