package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/repositories"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// CoverageService reports test coverage over the requirement set.
type CoverageService interface {
	// CoverageSummary walks every requirement matching the filter downstream
	// and counts it covered when the chain reaches at least one test case. A
	// parent requirement is covered only when all of its leaf descendants
	// are. Broken chains are tallied by break hop, never surfaced as errors.
	CoverageSummary(ctx context.Context, sc scope.Scope, filter models.CoverageFilter) (*models.CoverageSummary, error)
}

type coverageService struct {
	requirements repositories.RequirementRepository
	tracer       TraceService
	logger       *zap.Logger
}

var _ CoverageService = (*coverageService)(nil)

func NewCoverageService(requirements repositories.RequirementRepository, tracer TraceService, logger *zap.Logger) CoverageService {
	return &coverageService{requirements: requirements, tracer: tracer, logger: logger}
}

func (s *coverageService) CoverageSummary(ctx context.Context, sc scope.Scope, filter models.CoverageFilter) (*models.CoverageSummary, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	matching, err := s.requirements.List(ctx, sc, filter)
	if err != nil {
		return nil, err
	}

	// The rollup needs the whole tree: a filtered parent's leaves may not
	// match the filter themselves.
	all, err := s.requirements.List(ctx, sc, models.CoverageFilter{})
	if err != nil {
		return nil, err
	}
	hierarchy := NewRequirementHierarchy(all)

	summary := &models.CoverageSummary{
		Total:          len(matching),
		BrokenAtCounts: make(map[string]int),
	}

	// Each leaf is traced at most once, independent of how many matching
	// ancestors roll it up.
	leafCovered := make(map[uuid.UUID]bool)
	leafTraced := make(map[uuid.UUID]bool)

	for _, req := range matching {
		leaves, err := hierarchy.LeafDescendants(req.ID)
		if err != nil {
			return nil, err
		}

		covered := len(leaves) > 0
		for _, leaf := range leaves {
			ok, err := s.leafIsCovered(ctx, sc, leaf.ID, leafCovered, leafTraced, summary.BrokenAtCounts)
			if err != nil {
				return nil, err
			}
			if !ok {
				covered = false
			}
		}

		if covered {
			summary.Covered++
		} else {
			summary.Uncovered++
			summary.UncoveredIDs = append(summary.UncoveredIDs, req.ID)
		}
	}

	return summary, nil
}

// leafIsCovered traces one leaf requirement downstream, memoized per run.
// Broken chains count into the histogram exactly once per leaf.
func (s *coverageService) leafIsCovered(ctx context.Context, sc scope.Scope, leafID uuid.UUID, covered, traced map[uuid.UUID]bool, histogram map[string]int) (bool, error) {
	if traced[leafID] {
		return covered[leafID], nil
	}
	traced[leafID] = true

	chain, err := s.tracer.TraceDownstream(ctx, sc, leafID)
	if err != nil {
		return false, err
	}

	if chain.ReachesType(models.ArtifactTestCase) {
		covered[leafID] = true
		return true, nil
	}
	if chain.BrokenAt != nil {
		histogram[chain.BrokenAt.Hop]++
	}
	return false, nil
}
