package models

import (
	"time"

	"github.com/google/uuid"
)

// Requirement lifecycle states, draft through verified.
const (
	RequirementStatusDraft     = "draft"
	RequirementStatusReview    = "in_review"
	RequirementStatusApproved  = "approved"
	RequirementStatusConverted = "converted"
	RequirementStatusVerified  = "verified"
)

// Requirement priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Requirement captures the business requirement behind a workshop fit
// decision. ParentID is a user-editable self-reference (epic -> feature ->
// story), so every walk over the hierarchy carries a cycle guard. DerivedType
// and DerivedID point at the build or config item the requirement was converted
// into; both are nil until conversion.
type Requirement struct {
	ID             uuid.UUID     `json:"id"`
	TenantID       uuid.UUID     `json:"tenant_id"`
	ProjectID      uuid.UUID     `json:"project_id"`
	ProcessStepID  *uuid.UUID    `json:"process_step_id,omitempty"`
	ParentID       *uuid.UUID    `json:"parent_id,omitempty"`
	Title          string        `json:"title"`
	Status         string        `json:"status"`
	Classification FitStatus     `json:"classification"`
	Priority       string        `json:"priority"`
	DerivedType    *ArtifactType `json:"derived_type,omitempty"`
	DerivedID      *uuid.UUID    `json:"derived_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Ref implements Node.
func (r *Requirement) Ref() NodeRef {
	return NodeRef{Type: ArtifactRequirement, ID: r.ID, Label: r.Title}
}

// HasDerivedArtifact reports whether the requirement has been converted.
func (r *Requirement) HasDerivedArtifact() bool {
	return r.DerivedType != nil && r.DerivedID != nil
}
