package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/auth"
)

// WithTenantContext creates middleware that sets up a tenant-pinned DB
// connection. It runs AFTER auth middleware and uses the tenant and project
// IDs from JWT claims. The connection is automatically cleaned up after the
// handler returns.
func WithTenantContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok || claims.TenantID == "" || claims.ProjectID == "" {
				logger.Error("Missing tenant context in claims")
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing tenant context")
				return
			}

			tenantID, err := claims.TenantUUID()
			if err != nil {
				logger.Error("Invalid tenant ID format in claims",
					zap.String("tenant_id", claims.TenantID),
					zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_tenant_id", "Invalid tenant ID format")
				return
			}

			projectID, err := claims.ProjectUUID()
			if err != nil {
				logger.Error("Invalid project ID format in claims",
					zap.String("project_id", claims.ProjectID),
					zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_project_id", "Invalid project ID format")
				return
			}

			conn, err := db.WithTenant(r.Context(), tenantID, projectID)
			if err != nil {
				logger.Error("Failed to acquire tenant connection",
					zap.String("tenant_id", tenantID.String()),
					zap.String("project_id", projectID.String()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer conn.Close()

			ctx := SetTenantConn(r.Context(), conn)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
