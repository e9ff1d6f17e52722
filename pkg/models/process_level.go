package models

import (
	"time"

	"github.com/google/uuid"
)

// Process hierarchy depth. Level 1 is a value chain, level 4 a sub-process.
const (
	LevelValueChain  = 1
	LevelProcessArea = 2
	LevelScopeItem   = 3
	LevelSubProcess  = 4
)

// ProcessLevel is a node in the four-level business process hierarchy.
// Invariant: a child's level is exactly its parent's level plus one.
// fit_status is set directly on L4 by workshop evaluation and computed on L1-L3
// by propagation, unless fit_overridden pins it. Version supports the
// optimistic concurrency check on fit status writes.
type ProcessLevel struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	Level         int        `json:"level"`
	ParentID      *uuid.UUID `json:"parent_id,omitempty"`
	Name          string     `json:"name"`
	FitStatus     FitStatus  `json:"fit_status"`
	FitOverridden bool       `json:"fit_overridden"`
	SortOrder     int        `json:"sort_order"`
	Disabled      bool       `json:"disabled"`
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Ref implements Node.
func (p *ProcessLevel) Ref() NodeRef {
	return NodeRef{Type: ArtifactProcessLevel, ID: p.ID, Label: p.Name}
}
