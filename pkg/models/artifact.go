// Package models defines the artifact kinds tracked by the traceability graph
// and the result types the engine hands back to callers.
package models

import "github.com/google/uuid"

// ArtifactType is the type-tag vocabulary used by polymorphic trace links and
// by chain results. Tags are stored verbatim in trace_links.owner_type and
// trace_links.linked_type.
type ArtifactType string

const (
	ArtifactProcessLevel  ArtifactType = "process_level"
	ArtifactProcessStep   ArtifactType = "process_step"
	ArtifactRequirement   ArtifactType = "requirement"
	ArtifactBuildItem     ArtifactType = "build_item"
	ArtifactConfigItem    ArtifactType = "config_item"
	ArtifactTestCase      ArtifactType = "test_case"
	ArtifactTestExecution ArtifactType = "test_execution"
	ArtifactDefect        ArtifactType = "defect"
)

// Node is implemented by every artifact kind that can appear in a chain.
type Node interface {
	Ref() NodeRef
}

// NodeRef identifies one artifact in a chain result.
type NodeRef struct {
	Type  ArtifactType `json:"type"`
	ID    uuid.UUID    `json:"id"`
	Label string       `json:"label,omitempty"`
}
