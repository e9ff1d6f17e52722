package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/auth"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// ParseProjectID extracts and validates the project ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: pid
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_project_id", "Invalid project ID format", logger)
}

// ParseRequirementID extracts and validates the requirement ID from the
// request path.
// Expects path parameter: rid
func ParseRequirementID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "rid", "invalid_requirement_id", "Invalid requirement ID format", logger)
}

// ParseDefectID extracts and validates the defect ID from the request path.
// Expects path parameter: did
func ParseDefectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "did", "invalid_defect_id", "Invalid defect ID format", logger)
}

// ParseLevelID extracts and validates the process level ID from the request
// path.
// Expects path parameter: lid
func ParseLevelID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "lid", "invalid_level_id", "Invalid process level ID format", logger)
}

// RequestScope builds the caller's scope from the JWT tenant claim and the
// pid path parameter. Returns the scope and true on success, or a zero scope
// and false after writing an error response.
func RequestScope(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (scope.Scope, bool) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok || claims.TenantID == "" {
		if err := ErrorResponse(w, http.StatusUnauthorized, "missing_tenant_id", "Tenant ID required in token"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return scope.Scope{}, false
	}

	tenantID, err := claims.TenantUUID()
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_tenant_id", "Invalid tenant ID format in token"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return scope.Scope{}, false
	}

	projectID, ok := ParseProjectID(w, r, logger)
	if !ok {
		return scope.Scope{}, false
	}

	return scope.New(tenantID, projectID), true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
