package models

import "github.com/google/uuid"

// CoverageFilter narrows a coverage run to requirements of a given
// classification and/or priority. Zero values mean "all".
type CoverageFilter struct {
	Classification FitStatus `json:"classification,omitempty"`
	Priority       string    `json:"priority,omitempty"`
}

// CoverageSummary reports how many requirements trace through to at least one
// test case. A requirement whose downstream chain breaks before reaching a
// test case counts as uncovered, never as an error.
type CoverageSummary struct {
	Total          int            `json:"total"`
	Covered        int            `json:"covered"`
	Uncovered      int            `json:"uncovered"`
	UncoveredIDs   []uuid.UUID    `json:"uncovered_ids"`
	BrokenAtCounts map[string]int `json:"broken_at_counts"`
}

// ProcessImpact groups defects by the hierarchy node their upstream chains
// reach.
type ProcessImpact struct {
	NodeID    uuid.UUID   `json:"node_id"`
	Name      string      `json:"name"`
	Level     int         `json:"level"`
	DefectIDs []uuid.UUID `json:"defect_ids"`
}

// UnattributedDefect is a defect whose upstream chain broke before reaching
// the process hierarchy.
type UnattributedDefect struct {
	DefectID uuid.UUID `json:"defect_id"`
	BrokenAt string    `json:"broken_at"`
}

// ImpactSummary is the upstream-impact report over a set of defects.
type ImpactSummary struct {
	ValueChains  []ProcessImpact      `json:"value_chains"`
	ProcessAreas []ProcessImpact      `json:"process_areas"`
	Unattributed []UnattributedDefect `json:"unattributed"`
}
