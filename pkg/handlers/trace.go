package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/auth"
	"github.com/traceway-io/traceway-engine/pkg/config"
	"github.com/traceway-io/traceway-engine/pkg/engine"
	"github.com/traceway-io/traceway-engine/pkg/models"
)

// TenantMiddleware is a function that wraps a handler with tenant context.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// BatchTraceRequest is the request body for batch upstream traces.
type BatchTraceRequest struct {
	DefectIDs []uuid.UUID `json:"defect_ids"`
}

// BatchTraceResponse maps each resolved defect ID to its upstream chain.
type BatchTraceResponse struct {
	Chains map[uuid.UUID]*models.PartialChain `json:"chains"`
}

// TraceHandler handles graph traversal HTTP requests.
type TraceHandler struct {
	tracer engine.TraceService
	cfg    *config.Config
	logger *zap.Logger
}

// NewTraceHandler creates a new trace handler.
func NewTraceHandler(tracer engine.TraceService, cfg *config.Config, logger *zap.Logger) *TraceHandler {
	return &TraceHandler{tracer: tracer, cfg: cfg, logger: logger}
}

// RegisterRoutes registers the trace handler's routes on the given mux.
func (h *TraceHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/trace/requirements/{rid}/downstream",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Downstream)))
	mux.HandleFunc("GET /api/projects/{pid}/trace/defects/{did}/upstream",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Upstream)))
	mux.HandleFunc("POST /api/projects/{pid}/trace/defects/upstream:batch",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.UpstreamBatch)))
}

// Downstream handles GET /api/projects/{pid}/trace/requirements/{rid}/downstream
func (h *TraceHandler) Downstream(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	requirementID, ok := ParseRequirementID(w, r, h.logger)
	if !ok {
		return
	}

	ctx, cancel := h.traversalContext(r.Context())
	defer cancel()

	chain, err := h.tracer.TraceDownstream(ctx, sc, requirementID)
	if err != nil {
		h.traversalError(w, err, "downstream trace")
		return
	}
	if chain.Broken() {
		h.logger.Debug("Downstream chain has broken hops",
			zap.String("requirement_id", requirementID.String()))
	}

	if err := WriteJSON(w, http.StatusOK, chain); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Upstream handles GET /api/projects/{pid}/trace/defects/{did}/upstream
func (h *TraceHandler) Upstream(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	defectID, ok := ParseDefectID(w, r, h.logger)
	if !ok {
		return
	}

	ctx, cancel := h.traversalContext(r.Context())
	defer cancel()

	chain, err := h.tracer.TraceUpstream(ctx, sc, defectID)
	if err != nil {
		h.traversalError(w, err, "upstream trace")
		return
	}
	if chain.Broken() {
		h.logger.Debug("Upstream chain has broken hops",
			zap.String("defect_id", defectID.String()))
	}

	if err := WriteJSON(w, http.StatusOK, chain); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpstreamBatch handles POST /api/projects/{pid}/trace/defects/upstream:batch
// Defect IDs that do not resolve under the caller's scope are absent from the
// response, not errors.
func (h *TraceHandler) UpstreamBatch(w http.ResponseWriter, r *http.Request) {
	sc, ok := RequestScope(w, r, h.logger)
	if !ok {
		return
	}

	var req BatchTraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(req.DefectIDs) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_defect_ids", "defect_ids must not be empty"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ctx, cancel := h.traversalContext(r.Context())
	defer cancel()

	chains, err := h.tracer.TraceUpstreamBatch(ctx, sc, req.DefectIDs)
	if err != nil {
		h.traversalError(w, err, "batch upstream trace")
		return
	}

	if err := WriteJSON(w, http.StatusOK, BatchTraceResponse{Chains: chains}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// traversalContext bounds a traversal with the configured default timeout
// when the caller supplies no deadline.
func (h *TraceHandler) traversalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.cfg.Traversal.DefaultTimeout)
}

func (h *TraceHandler) traversalError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFoundInScope):
		if werr := ErrorResponse(w, http.StatusNotFound, "not_found", "Artifact not found"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	case errors.Is(err, apperrors.ErrScopeMissing):
		if werr := ErrorResponse(w, http.StatusBadRequest, "missing_scope", "Tenant and project scope required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	default:
		h.logger.Error("Traversal failed", zap.String("op", op), zap.Error(err))
		if werr := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Traversal failed"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
	}
}
