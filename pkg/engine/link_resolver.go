// Package engine implements the traceability graph walker and the fit
// propagation engine. All entry points take an explicit tenant/project scope
// and validate it before touching storage.
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/repositories"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// ResolveOutcome classifies the result of resolving a polymorphic link target.
type ResolveOutcome string

const (
	// OutcomeFound means the linked artifact exists under the caller's scope.
	OutcomeFound ResolveOutcome = "found"
	// OutcomeNotFoundInScope means the id does not resolve under this tenant
	// and project. An id existing under another tenant is reported identically
	// to one that does not exist at all.
	OutcomeNotFoundInScope ResolveOutcome = "not_found_in_scope"
	// OutcomeUnknownType means the type tag is outside the registered
	// vocabulary.
	OutcomeUnknownType ResolveOutcome = "unknown_type"
)

// nodeFetch loads one artifact of a fixed kind under a scope.
type nodeFetch func(ctx context.Context, sc scope.Scope, id uuid.UUID) (models.Node, error)

// LinkResolver resolves a polymorphic (type, id) edge to a concrete artifact.
// It is the only component that understands the type-tag vocabulary; adding a
// new linkable artifact kind means registering one accessor here.
type LinkResolver struct {
	registry map[models.ArtifactType]nodeFetch
}

// NewLinkResolver builds the resolver registry over the typed repositories.
func NewLinkResolver(
	levels repositories.ProcessLevelRepository,
	steps repositories.ProcessStepRepository,
	requirements repositories.RequirementRepository,
	buildItems repositories.BuildItemRepository,
	configItems repositories.ConfigItemRepository,
	testCases repositories.TestCaseRepository,
) *LinkResolver {
	return &LinkResolver{
		registry: map[models.ArtifactType]nodeFetch{
			models.ArtifactProcessLevel: func(ctx context.Context, sc scope.Scope, id uuid.UUID) (models.Node, error) {
				return levels.GetByID(ctx, sc, id)
			},
			models.ArtifactProcessStep: func(ctx context.Context, sc scope.Scope, id uuid.UUID) (models.Node, error) {
				return steps.GetByID(ctx, sc, id)
			},
			models.ArtifactRequirement: func(ctx context.Context, sc scope.Scope, id uuid.UUID) (models.Node, error) {
				return requirements.GetByID(ctx, sc, id)
			},
			models.ArtifactBuildItem: func(ctx context.Context, sc scope.Scope, id uuid.UUID) (models.Node, error) {
				return buildItems.GetByID(ctx, sc, id)
			},
			models.ArtifactConfigItem: func(ctx context.Context, sc scope.Scope, id uuid.UUID) (models.Node, error) {
				return configItems.GetByID(ctx, sc, id)
			},
			models.ArtifactTestCase: func(ctx context.Context, sc scope.Scope, id uuid.UUID) (models.Node, error) {
				return testCases.GetByID(ctx, sc, id)
			},
		},
	}
}

// Resolve loads the artifact behind a (type, id) pair under the given scope.
// The error return carries only infrastructure failures; absence and unknown
// tags are outcomes, not errors.
func (r *LinkResolver) Resolve(ctx context.Context, sc scope.Scope, linkedType models.ArtifactType, linkedID uuid.UUID) (models.Node, ResolveOutcome, error) {
	if err := sc.Validate(); err != nil {
		return nil, "", err
	}

	fetch, ok := r.registry[linkedType]
	if !ok {
		return nil, OutcomeUnknownType, nil
	}

	node, err := fetch(ctx, sc, linkedID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFoundInScope) {
			return nil, OutcomeNotFoundInScope, nil
		}
		return nil, "", err
	}

	return node, OutcomeFound, nil
}
