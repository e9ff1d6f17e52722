//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

func createLeafLevel(t *testing.T, ctx context.Context, sc scope.Scope) *models.ProcessLevel {
	t.Helper()
	levels := NewProcessLevelRepository()

	parent := &models.ProcessLevel{Level: models.LevelValueChain, Name: "Value chain"}
	require.NoError(t, levels.Create(ctx, sc, parent))
	area := &models.ProcessLevel{Level: models.LevelProcessArea, ParentID: &parent.ID, Name: "Area"}
	require.NoError(t, levels.Create(ctx, sc, area))
	item := &models.ProcessLevel{Level: models.LevelScopeItem, ParentID: &area.ID, Name: "Scope item"}
	require.NoError(t, levels.Create(ctx, sc, item))
	leaf := &models.ProcessLevel{Level: models.LevelSubProcess, ParentID: &item.ID, Name: "Sub-process"}
	require.NoError(t, levels.Create(ctx, sc, leaf))

	return leaf
}

func TestProcessStepRepository_OpenStepLifecycle(t *testing.T) {
	sc := scope.New(uuid.New(), uuid.New())
	ctx := tenantCtx(t, sc)
	repo := NewProcessStepRepository()

	leaf := createLeafLevel(t, ctx, sc)

	_, err := repo.GetOpenByProcessLevel(ctx, sc, leaf.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFoundInScope)

	gap := models.FitStatusGap
	first := &models.ProcessStep{
		ProcessLevelID: leaf.ID,
		WorkshopID:     uuid.New(),
		FitDecision:    &gap,
	}
	require.NoError(t, repo.Create(ctx, sc, first))

	open, err := repo.GetOpenByProcessLevel(ctx, sc, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, open.ID)

	// A follow-up workshop supersedes the previous decision.
	require.NoError(t, repo.SupersedeOpen(ctx, sc, leaf.ID))

	fit := models.FitStatusFit
	second := &models.ProcessStep{
		ProcessLevelID: leaf.ID,
		WorkshopID:     uuid.New(),
		FitDecision:    &fit,
	}
	require.NoError(t, repo.Create(ctx, sc, second))

	open, err = repo.GetOpenByProcessLevel(ctx, sc, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)
	require.NotNil(t, open.FitDecision)
	assert.Equal(t, models.FitStatusFit, *open.FitDecision)

	stale, err := repo.GetByID(ctx, sc, first.ID)
	require.NoError(t, err)
	assert.True(t, stale.Superseded)
}

func TestProcessStepRepository_SupersedeOpen_NoOpWhenEmpty(t *testing.T) {
	sc := scope.New(uuid.New(), uuid.New())
	ctx := tenantCtx(t, sc)
	repo := NewProcessStepRepository()

	leaf := createLeafLevel(t, ctx, sc)

	assert.NoError(t, repo.SupersedeOpen(ctx, sc, leaf.ID))
}

func TestTraceLinkRepository_BatchLookups(t *testing.T) {
	sc := scope.New(uuid.New(), uuid.New())
	ctx := tenantCtx(t, sc)
	repo := NewTraceLinkRepository()

	tc1, tc2 := uuid.New(), uuid.New()
	req1, req2 := uuid.New(), uuid.New()

	for _, link := range []*models.TraceLink{
		{OwnerType: models.ArtifactTestCase, OwnerID: tc1, LinkedType: models.ArtifactRequirement, LinkedID: req1},
		{OwnerType: models.ArtifactTestCase, OwnerID: tc1, LinkedType: models.ArtifactRequirement, LinkedID: req2},
		{OwnerType: models.ArtifactTestCase, OwnerID: tc2, LinkedType: models.ArtifactRequirement, LinkedID: req1},
	} {
		require.NoError(t, repo.Create(ctx, sc, link))
	}

	byOwner, err := repo.ListByOwners(ctx, sc, models.ArtifactTestCase, []uuid.UUID{tc1, tc2})
	require.NoError(t, err)
	assert.Len(t, byOwner[tc1], 2)
	assert.Len(t, byOwner[tc2], 1)

	byLinked, err := repo.ListByLinked(ctx, sc, models.ArtifactRequirement, req1)
	require.NoError(t, err)
	assert.Len(t, byLinked, 2)
}
