package models

import (
	"time"

	"github.com/google/uuid"
)

// BuildItem is a development artifact (RICEFW object) derived from a
// requirement classified as gap or partial fit.
type BuildItem struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	RequirementID *uuid.UUID `json:"requirement_id,omitempty"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Ref implements Node.
func (b *BuildItem) Ref() NodeRef {
	return NodeRef{Type: ArtifactBuildItem, ID: b.ID, Label: b.Title}
}

// ConfigItem is a configuration artifact derived from a requirement that the
// standard solution can cover with customizing only.
type ConfigItem struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	RequirementID *uuid.UUID `json:"requirement_id,omitempty"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Ref implements Node.
func (c *ConfigItem) Ref() NodeRef {
	return NodeRef{Type: ArtifactConfigItem, ID: c.ID, Label: c.Title}
}
