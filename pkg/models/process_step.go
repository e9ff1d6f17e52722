package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessStep is the in-workshop evaluation of one L4 process level. At most
// one open (non-superseded) step exists per process level; multi-session
// workshops carry the latest decision forward by superseding the previous step.
type ProcessStep struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	ProcessLevelID uuid.UUID  `json:"process_level_id"`
	WorkshopID     uuid.UUID  `json:"workshop_id"`
	FitDecision    *FitStatus `json:"fit_decision,omitempty"`
	Superseded     bool       `json:"superseded"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Ref implements Node.
func (p *ProcessStep) Ref() NodeRef {
	return NodeRef{Type: ArtifactProcessStep, ID: p.ID}
}
