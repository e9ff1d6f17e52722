package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/repositories"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// PropagationService recomputes fit status up the process hierarchy.
//
// Runs are idempotent and deterministic: re-propagating an unchanged
// hierarchy writes nothing, and the same child statuses always produce the
// same ancestor statuses, reported child-to-root.
type PropagationService interface {
	// Propagate recomputes every non-overridden ancestor of the given
	// process level, stopping at the first overridden node. Returns the fit
	// mutations actually applied, ordered from the lowest level upward.
	Propagate(ctx context.Context, sc scope.Scope, levelID uuid.UUID) ([]models.FitMutation, error)

	// RecordDecision stores a workshop fit decision against an L4 process
	// level: the current open process step is superseded, a new one is
	// created, the level's fit status is set, and the change propagates
	// upward. Returns the new step and all applied mutations.
	RecordDecision(ctx context.Context, sc scope.Scope, levelID, workshopID uuid.UUID, decision models.FitStatus) (*models.ProcessStep, []models.FitMutation, error)

	// SetOverride pins a node's fit status. A pinned node ignores
	// propagation and stops it from climbing past the node, but its pinned
	// value still feeds its own parent's aggregation.
	SetOverride(ctx context.Context, sc scope.Scope, levelID uuid.UUID, status models.FitStatus) ([]models.FitMutation, error)

	// ClearOverride unpins a node, recomputes its status from below, and
	// propagates the result upward.
	ClearOverride(ctx context.Context, sc scope.Scope, levelID uuid.UUID) ([]models.FitMutation, error)

	// SetDisabled soft-disables (or re-enables) a node. Disabled nodes keep
	// their stored status but drop out of every ancestor aggregation, so the
	// change propagates upward.
	SetDisabled(ctx context.Context, sc scope.Scope, levelID uuid.UUID, disabled bool) ([]models.FitMutation, error)
}

type propagationService struct {
	levels       repositories.ProcessLevelRepository
	steps        repositories.ProcessStepRepository
	gapThreshold float64
	logger       *zap.Logger
}

var _ PropagationService = (*propagationService)(nil)

func NewPropagationService(
	levels repositories.ProcessLevelRepository,
	steps repositories.ProcessStepRepository,
	gapThreshold float64,
	logger *zap.Logger,
) PropagationService {
	return &propagationService{
		levels:       levels,
		steps:        steps,
		gapThreshold: gapThreshold,
		logger:       logger,
	}
}

func (s *propagationService) Propagate(ctx context.Context, sc scope.Scope, levelID uuid.UUID) ([]models.FitMutation, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	node, err := s.levels.GetByID(ctx, sc, levelID)
	if err != nil {
		return nil, err
	}
	return s.propagateFrom(ctx, sc, node)
}

// propagateFrom climbs from node's parent to the hierarchy root, recomputing
// each non-overridden ancestor. An overridden ancestor is a hard wall: its
// status is left alone and nothing above it is touched.
func (s *propagationService) propagateFrom(ctx context.Context, sc scope.Scope, node *models.ProcessLevel) ([]models.FitMutation, error) {
	var mutations []models.FitMutation

	current := node
	for current.ParentID != nil {
		parent, err := s.levels.GetByID(ctx, sc, *current.ParentID)
		if err != nil {
			return nil, fmt.Errorf("loading parent of level %s: %w", current.ID, err)
		}
		if current.Level != parent.Level+1 {
			return nil, fmt.Errorf("level %s is L%d under L%d parent %s: %w",
				current.ID, current.Level, parent.Level, parent.ID, apperrors.ErrLevelMismatch)
		}
		if parent.FitOverridden {
			s.logger.Debug("propagation stopped at overridden node",
				zap.String("level_id", parent.ID.String()),
				zap.Int("level", parent.Level))
			break
		}

		parent, err = s.recompute(ctx, sc, parent, &mutations)
		if err != nil {
			return nil, err
		}
		if parent.FitOverridden {
			// Overridden between our read and write; wall applies.
			break
		}
		current = parent
	}

	return mutations, nil
}

// recompute aggregates parent's children and stores the result under the
// optimistic version check. A lost version race is retried once against a
// fresh read; a second loss surfaces ErrConcurrentUpdate.
func (s *propagationService) recompute(ctx context.Context, sc scope.Scope, parent *models.ProcessLevel, mutations *[]models.FitMutation) (*models.ProcessLevel, error) {
	for attempt := 0; attempt < 2; attempt++ {
		status, err := s.aggregateChildren(ctx, sc, parent)
		if err != nil {
			return nil, err
		}
		if status == parent.FitStatus {
			return parent, nil
		}

		err = s.levels.UpdateFitStatus(ctx, sc, parent.ID, parent.Version, status)
		if err == nil {
			*mutations = append(*mutations, models.FitMutation{
				NodeID:    parent.ID,
				Level:     parent.Level,
				OldStatus: parent.FitStatus,
				NewStatus: status,
			})
			parent.FitStatus = status
			parent.Version++
			return parent, nil
		}
		if !errors.Is(err, apperrors.ErrConcurrentUpdate) {
			return nil, err
		}

		s.logger.Debug("fit status version race, re-reading",
			zap.String("level_id", parent.ID.String()))
		parent, err = s.levels.GetByID(ctx, sc, parent.ID)
		if err != nil {
			return nil, err
		}
		if parent.FitOverridden {
			return parent, nil
		}
	}

	return nil, fmt.Errorf("updating fit status of level %s: %w", parent.ID, apperrors.ErrConcurrentUpdate)
}

// aggregateChildren computes a parent's fit status from its children with
// worst-case-wins semantics. Disabled and unset children do not participate;
// a parent with no scored children is unset.
func (s *propagationService) aggregateChildren(ctx context.Context, sc scope.Scope, parent *models.ProcessLevel) (models.FitStatus, error) {
	children, err := s.levels.ListChildren(ctx, sc, parent.ID)
	if err != nil {
		return "", err
	}

	var scored, gaps, partials int
	for _, child := range children {
		if child.Level != parent.Level+1 {
			return "", fmt.Errorf("level %s is L%d under L%d parent %s: %w",
				child.ID, child.Level, parent.Level, parent.ID, apperrors.ErrLevelMismatch)
		}
		if child.Disabled || !child.FitStatus.Scored() {
			continue
		}
		scored++
		switch child.FitStatus {
		case models.FitStatusGap:
			gaps++
		case models.FitStatusPartialFit:
			partials++
		}
	}

	switch {
	case scored == 0:
		return models.FitStatusUnset, nil
	case gaps > 0 && float64(gaps)/float64(scored) > s.gapThreshold:
		return models.FitStatusGap, nil
	case gaps > 0 || partials > 0:
		return models.FitStatusPartialFit, nil
	default:
		return models.FitStatusFit, nil
	}
}

func (s *propagationService) RecordDecision(ctx context.Context, sc scope.Scope, levelID, workshopID uuid.UUID, decision models.FitStatus) (*models.ProcessStep, []models.FitMutation, error) {
	if err := sc.Validate(); err != nil {
		return nil, nil, err
	}
	if !decision.Scored() {
		return nil, nil, fmt.Errorf("fit decision must be fit, partial_fit or gap, got %q", decision)
	}

	level, err := s.levels.GetByID(ctx, sc, levelID)
	if err != nil {
		return nil, nil, err
	}
	if level.Level != models.LevelSubProcess {
		return nil, nil, fmt.Errorf("workshop decisions apply to L%d nodes, level %s is L%d: %w",
			models.LevelSubProcess, level.ID, level.Level, apperrors.ErrLevelMismatch)
	}

	if err := s.steps.SupersedeOpen(ctx, sc, levelID); err != nil {
		return nil, nil, fmt.Errorf("superseding open step for level %s: %w", levelID, err)
	}
	step := &models.ProcessStep{
		ID:             uuid.New(),
		TenantID:       sc.TenantID,
		ProjectID:      sc.ProjectID,
		ProcessLevelID: levelID,
		WorkshopID:     workshopID,
		FitDecision:    &decision,
	}
	if err := s.steps.Create(ctx, sc, step); err != nil {
		return nil, nil, fmt.Errorf("creating process step: %w", err)
	}

	var mutations []models.FitMutation
	if !level.FitOverridden {
		level, err = s.setStatus(ctx, sc, level, decision, &mutations)
		if err != nil {
			return nil, nil, err
		}
	}

	upward, err := s.propagateFrom(ctx, sc, level)
	if err != nil {
		return nil, nil, err
	}
	return step, append(mutations, upward...), nil
}

// setStatus writes an explicit (non-aggregated) status with the same one-retry
// version discipline as recompute.
func (s *propagationService) setStatus(ctx context.Context, sc scope.Scope, level *models.ProcessLevel, status models.FitStatus, mutations *[]models.FitMutation) (*models.ProcessLevel, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if status == level.FitStatus {
			return level, nil
		}
		err := s.levels.UpdateFitStatus(ctx, sc, level.ID, level.Version, status)
		if err == nil {
			*mutations = append(*mutations, models.FitMutation{
				NodeID:    level.ID,
				Level:     level.Level,
				OldStatus: level.FitStatus,
				NewStatus: status,
			})
			level.FitStatus = status
			level.Version++
			return level, nil
		}
		if !errors.Is(err, apperrors.ErrConcurrentUpdate) {
			return nil, err
		}
		level, err = s.levels.GetByID(ctx, sc, level.ID)
		if err != nil {
			return nil, err
		}
		if level.FitOverridden {
			return level, nil
		}
	}
	return nil, fmt.Errorf("updating fit status of level %s: %w", level.ID, apperrors.ErrConcurrentUpdate)
}

func (s *propagationService) SetOverride(ctx context.Context, sc scope.Scope, levelID uuid.UUID, status models.FitStatus) ([]models.FitMutation, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid fit status %q", status)
	}

	level, err := s.levels.GetByID(ctx, sc, levelID)
	if err != nil {
		return nil, err
	}

	var mutations []models.FitMutation
	for attempt := 0; attempt < 2; attempt++ {
		err = s.levels.SetOverride(ctx, sc, level.ID, level.Version, true, status)
		if err == nil {
			if status != level.FitStatus {
				mutations = append(mutations, models.FitMutation{
					NodeID:    level.ID,
					Level:     level.Level,
					OldStatus: level.FitStatus,
					NewStatus: status,
				})
			}
			level.FitStatus = status
			level.FitOverridden = true
			level.Version++

			// The pinned value still counts in the parent's aggregation.
			upward, err := s.propagateFrom(ctx, sc, level)
			if err != nil {
				return nil, err
			}
			return append(mutations, upward...), nil
		}
		if !errors.Is(err, apperrors.ErrConcurrentUpdate) {
			return nil, err
		}
		level, err = s.levels.GetByID(ctx, sc, level.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("overriding fit status of level %s: %w", levelID, apperrors.ErrConcurrentUpdate)
}

func (s *propagationService) ClearOverride(ctx context.Context, sc scope.Scope, levelID uuid.UUID) ([]models.FitMutation, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	level, err := s.levels.GetByID(ctx, sc, levelID)
	if err != nil {
		return nil, err
	}

	var mutations []models.FitMutation
	for attempt := 0; attempt < 2; attempt++ {
		status, cerr := s.ownStatus(ctx, sc, level)
		if cerr != nil {
			return nil, cerr
		}
		err = s.levels.SetOverride(ctx, sc, level.ID, level.Version, false, status)
		if err == nil {
			if status != level.FitStatus {
				mutations = append(mutations, models.FitMutation{
					NodeID:    level.ID,
					Level:     level.Level,
					OldStatus: level.FitStatus,
					NewStatus: status,
				})
			}
			level.FitStatus = status
			level.FitOverridden = false
			level.Version++

			upward, err := s.propagateFrom(ctx, sc, level)
			if err != nil {
				return nil, err
			}
			return append(mutations, upward...), nil
		}
		if !errors.Is(err, apperrors.ErrConcurrentUpdate) {
			return nil, err
		}
		level, err = s.levels.GetByID(ctx, sc, level.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("clearing fit override of level %s: %w", levelID, apperrors.ErrConcurrentUpdate)
}

func (s *propagationService) SetDisabled(ctx context.Context, sc scope.Scope, levelID uuid.UUID, disabled bool) ([]models.FitMutation, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	level, err := s.levels.GetByID(ctx, sc, levelID)
	if err != nil {
		return nil, err
	}
	if level.Disabled == disabled {
		return nil, nil
	}

	if err := s.levels.SetDisabled(ctx, sc, level.ID, disabled); err != nil {
		return nil, fmt.Errorf("setting disabled flag of level %s: %w", levelID, err)
	}
	level.Disabled = disabled

	s.logger.Debug("process level disabled flag changed",
		zap.String("level_id", level.ID.String()),
		zap.Bool("disabled", disabled))

	return s.propagateFrom(ctx, sc, level)
}

// ownStatus computes what a node's fit status should be absent an override:
// the open workshop decision for an L4 node, the child aggregate otherwise.
func (s *propagationService) ownStatus(ctx context.Context, sc scope.Scope, level *models.ProcessLevel) (models.FitStatus, error) {
	if level.Level == models.LevelSubProcess {
		step, err := s.steps.GetOpenByProcessLevel(ctx, sc, level.ID)
		if errors.Is(err, apperrors.ErrNotFoundInScope) {
			return models.FitStatusUnset, nil
		}
		if err != nil {
			return "", err
		}
		if step.FitDecision == nil {
			return models.FitStatusUnset, nil
		}
		return *step.FitDecision, nil
	}
	return s.aggregateChildren(ctx, sc, level)
}
