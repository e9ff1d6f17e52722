package models

import "github.com/google/uuid"

// Hop names reported in PartialChain.BrokenAt. The name identifies the edge
// the traversal could not cross; the break point also carries the last node
// that did resolve so a caller can render "chain ends here".
const (
	HopRequirementDerived = "requirement→derived_artifact"
	HopDerivedTestCase    = "derived_artifact→test_case"
	HopTestCaseExecution  = "test_case→test_execution"
	HopTestCaseLinked     = "test_case→linked_artifact"
	HopExecutionTestCase  = "test_execution→test_case"
	HopDefectExecution    = "defect→test_execution"
	HopRequirementStep    = "requirement→process_step"
	HopBuildItemStep      = "build_item→process_step"
	HopConfigItemStep     = "config_item→process_step"
	HopStepProcessLevel   = "process_step→process_level"
	HopProcessLevelParent = "process_level→parent"
)

// BreakPoint names the hop a traversal stopped at and the last node that
// resolved before it.
type BreakPoint struct {
	Hop      string       `json:"hop"`
	LastType ArtifactType `json:"last_type"`
	LastID   uuid.UUID    `json:"last_id"`
}

// ChainBranch is one parallel path of a traversal. Upstream, a test case
// linked to several artifact kinds fans out into one branch per link, tagged
// with the link type that produced it. Downstream, each linked test case opens
// a branch.
type ChainBranch struct {
	LinkedType ArtifactType `json:"linked_type"`
	Nodes      []NodeRef    `json:"nodes"`
	BrokenAt   *BreakPoint  `json:"broken_at,omitempty"`
}

// PartialChain is the result of a traversal. It never represents a failure: a
// broken edge terminates a branch and is recorded in BrokenAt, and a traversal
// cut short by the caller's deadline returns whatever accumulated with
// Truncated set. Nodes is the shared prefix before any fan-out.
type PartialChain struct {
	Nodes     []NodeRef     `json:"nodes"`
	Branches  []ChainBranch `json:"branches,omitempty"`
	BrokenAt  *BreakPoint   `json:"broken_at,omitempty"`
	Truncated bool          `json:"truncated"`
}

// Broken reports whether any part of the chain stopped at a missing edge.
func (c *PartialChain) Broken() bool {
	if c.BrokenAt != nil {
		return true
	}
	for _, b := range c.Branches {
		if b.BrokenAt != nil {
			return true
		}
	}
	return false
}

// ReachesType reports whether any node in the chain, prefix or branch, is of
// the given artifact type.
func (c *PartialChain) ReachesType(t ArtifactType) bool {
	for _, n := range c.Nodes {
		if n.Type == t {
			return true
		}
	}
	for _, b := range c.Branches {
		for _, n := range b.Nodes {
			if n.Type == t {
				return true
			}
		}
	}
	return false
}
