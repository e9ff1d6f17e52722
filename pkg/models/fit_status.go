package models

import "github.com/google/uuid"

// FitStatus classifies how well a standard business process matches the
// proposed solution. L4 nodes get it from workshop evaluation; L1-L3 nodes get
// it computed by fit propagation unless a human pinned it with an override.
type FitStatus string

const (
	FitStatusUnset      FitStatus = "unset"
	FitStatusFit        FitStatus = "fit"
	FitStatusPartialFit FitStatus = "partial_fit"
	FitStatusGap        FitStatus = "gap"
)

// Valid reports whether s is part of the fit status vocabulary.
func (s FitStatus) Valid() bool {
	switch s {
	case FitStatusUnset, FitStatusFit, FitStatusPartialFit, FitStatusGap:
		return true
	}
	return false
}

// Scored reports whether s participates in aggregation. Unset children are
// ignored by propagation.
func (s FitStatus) Scored() bool {
	return s == FitStatusFit || s == FitStatusPartialFit || s == FitStatusGap
}

// FitMutation records one fit status change applied by a propagation run.
type FitMutation struct {
	NodeID    uuid.UUID `json:"node_id"`
	Level     int       `json:"level"`
	OldStatus FitStatus `json:"old_status"`
	NewStatus FitStatus `json:"new_status"`
}
