package models

import (
	"time"

	"github.com/google/uuid"
)

// TraceLink is the polymorphic edge of the graph: a (type, id) pair on each
// end, resolved at runtime through the link resolver. The linked id alone is
// not tenant-safe; resolution always re-applies the tenant/project predicate.
// (tenant_id, owner_type, owner_id, linked_type, linked_id) is unique.
type TraceLink struct {
	ID         uuid.UUID    `json:"id"`
	TenantID   uuid.UUID    `json:"tenant_id"`
	ProjectID  uuid.UUID    `json:"project_id"`
	OwnerType  ArtifactType `json:"owner_type"`
	OwnerID    uuid.UUID    `json:"owner_id"`
	LinkedType ArtifactType `json:"linked_type"`
	LinkedID   uuid.UUID    `json:"linked_id"`
	CreatedAt  time.Time    `json:"created_at"`
}
