// Package scope defines the explicit tenant/project scope every engine call
// carries. The scope is always passed by parameter; nothing in the engine reads
// tenant identity from ambient state.
package scope

import (
	"github.com/google/uuid"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
)

// Scope identifies exactly one tenant and one project within it. Every read and
// write in the engine is predicated on both ids.
type Scope struct {
	TenantID  uuid.UUID
	ProjectID uuid.UUID
}

// New builds a Scope from the given ids.
func New(tenantID, projectID uuid.UUID) Scope {
	return Scope{TenantID: tenantID, ProjectID: projectID}
}

// Validate returns ErrScopeMissing when either id is absent. Engine entry
// points call this before touching any repository.
func (s Scope) Validate() error {
	if s.TenantID == uuid.Nil || s.ProjectID == uuid.Nil {
		return apperrors.ErrScopeMissing
	}
	return nil
}
