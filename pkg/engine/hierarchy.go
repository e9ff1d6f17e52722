package engine

import (
	"github.com/google/uuid"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
)

// RequirementHierarchy is an in-memory index over a project's requirement
// tree (epic -> feature -> story). parent_id is user-editable, so every walk
// carries a visited set and returns ErrCycleDetected instead of recursing
// forever.
type RequirementHierarchy struct {
	byID     map[uuid.UUID]*models.Requirement
	children map[uuid.UUID][]uuid.UUID
}

// NewRequirementHierarchy indexes the given requirements by id and parent.
func NewRequirementHierarchy(reqs []*models.Requirement) *RequirementHierarchy {
	h := &RequirementHierarchy{
		byID:     make(map[uuid.UUID]*models.Requirement, len(reqs)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, r := range reqs {
		h.byID[r.ID] = r
	}
	for _, r := range reqs {
		if r.ParentID != nil {
			h.children[*r.ParentID] = append(h.children[*r.ParentID], r.ID)
		}
	}
	return h
}

// Get returns the indexed requirement, or nil.
func (h *RequirementHierarchy) Get(id uuid.UUID) *models.Requirement {
	return h.byID[id]
}

// IsLeaf reports whether the requirement has no children in the index.
func (h *RequirementHierarchy) IsLeaf(id uuid.UUID) bool {
	return len(h.children[id]) == 0
}

// Ancestors returns the requirement's ancestor chain, nearest first. A parent
// id pointing outside the index terminates the chain silently (orphaned links
// are normal); a repeated id returns ErrCycleDetected.
func (h *RequirementHierarchy) Ancestors(id uuid.UUID) ([]*models.Requirement, error) {
	visited := map[uuid.UUID]bool{id: true}

	var chain []*models.Requirement
	current := h.byID[id]
	for current != nil && current.ParentID != nil {
		parentID := *current.ParentID
		if visited[parentID] {
			return nil, apperrors.ErrCycleDetected
		}
		visited[parentID] = true

		parent := h.Get(parentID)
		if parent == nil {
			break
		}
		chain = append(chain, parent)
		current = parent
	}

	return chain, nil
}

// LeafDescendants returns every leaf requirement under the given one,
// including the requirement itself when it is a leaf. The walk carries a
// visited path set and returns ErrCycleDetected on re-entry.
func (h *RequirementHierarchy) LeafDescendants(id uuid.UUID) ([]*models.Requirement, error) {
	var leaves []*models.Requirement
	visited := make(map[uuid.UUID]bool)

	var walk func(nodeID uuid.UUID) error
	walk = func(nodeID uuid.UUID) error {
		if visited[nodeID] {
			return apperrors.ErrCycleDetected
		}
		visited[nodeID] = true

		if h.IsLeaf(nodeID) {
			if r := h.Get(nodeID); r != nil {
				leaves = append(leaves, r)
			}
			return nil
		}
		for _, childID := range h.children[nodeID] {
			if err := walk(childID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(id); err != nil {
		return nil, err
	}
	return leaves, nil
}
