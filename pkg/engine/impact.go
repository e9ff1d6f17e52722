package engine

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/repositories"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// ImpactService maps defects back onto the process hierarchy.
type ImpactService interface {
	// UpstreamImpact traces the given defects upstream in one batch and
	// groups them by the value chains (L1) and process areas (L2) their
	// chains reach. Defects that reach neither are reported unattributed
	// with the hop their chain broke at.
	UpstreamImpact(ctx context.Context, sc scope.Scope, defectIDs []uuid.UUID) (*models.ImpactSummary, error)
}

type impactService struct {
	levels repositories.ProcessLevelRepository
	tracer TraceService
	logger *zap.Logger
}

var _ ImpactService = (*impactService)(nil)

func NewImpactService(levels repositories.ProcessLevelRepository, tracer TraceService, logger *zap.Logger) ImpactService {
	return &impactService{levels: levels, tracer: tracer, logger: logger}
}

func (s *impactService) UpstreamImpact(ctx context.Context, sc scope.Scope, defectIDs []uuid.UUID) (*models.ImpactSummary, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	chains, err := s.tracer.TraceUpstreamBatch(ctx, sc, defectIDs)
	if err != nil {
		return nil, err
	}

	levelByID, err := s.resolveLevels(ctx, sc, chains)
	if err != nil {
		return nil, err
	}

	valueChains := make(map[uuid.UUID]*models.ProcessImpact)
	processAreas := make(map[uuid.UUID]*models.ProcessImpact)
	summary := &models.ImpactSummary{}

	// Input order drives defect id order inside each group.
	for _, defectID := range defectIDs {
		chain, ok := chains[defectID]
		if !ok {
			continue
		}

		attributed := false
		seen := make(map[uuid.UUID]bool)
		for _, ref := range chainLevelRefs(chain) {
			lvl, ok := levelByID[ref.ID]
			if !ok || seen[lvl.ID] {
				continue
			}
			seen[lvl.ID] = true

			var group map[uuid.UUID]*models.ProcessImpact
			switch lvl.Level {
			case models.LevelValueChain:
				group = valueChains
			case models.LevelProcessArea:
				group = processAreas
			default:
				continue
			}
			impact, ok := group[lvl.ID]
			if !ok {
				impact = &models.ProcessImpact{NodeID: lvl.ID, Name: lvl.Name, Level: lvl.Level}
				group[lvl.ID] = impact
			}
			impact.DefectIDs = append(impact.DefectIDs, defectID)
			attributed = true
		}

		if !attributed {
			summary.Unattributed = append(summary.Unattributed, models.UnattributedDefect{
				DefectID: defectID,
				BrokenAt: firstBreakHop(chain),
			})
		}
	}

	summary.ValueChains = sortedImpacts(valueChains)
	summary.ProcessAreas = sortedImpacts(processAreas)
	return summary, nil
}

// resolveLevels fetches every process level referenced by the chains in one
// grouped read, so the grouping below knows each node's hierarchy level.
func (s *impactService) resolveLevels(ctx context.Context, sc scope.Scope, chains map[uuid.UUID]*models.PartialChain) (map[uuid.UUID]*models.ProcessLevel, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, chain := range chains {
		for _, ref := range chainLevelRefs(chain) {
			if !seen[ref.ID] {
				seen[ref.ID] = true
				ids = append(ids, ref.ID)
			}
		}
	}

	levels, err := s.levels.GetByIDs(ctx, sc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.ProcessLevel, len(levels))
	for _, lvl := range levels {
		byID[lvl.ID] = lvl
	}
	return byID, nil
}

// chainLevelRefs returns every process level node the chain touched, across
// all branches.
func chainLevelRefs(chain *models.PartialChain) []models.NodeRef {
	var refs []models.NodeRef
	for _, n := range chain.Nodes {
		if n.Type == models.ArtifactProcessLevel {
			refs = append(refs, n)
		}
	}
	for _, b := range chain.Branches {
		for _, n := range b.Nodes {
			if n.Type == models.ArtifactProcessLevel {
				refs = append(refs, n)
			}
		}
	}
	return refs
}

// firstBreakHop names the hop an unattributed chain broke at: the prefix
// break if any, otherwise the first broken branch in branch order.
func firstBreakHop(chain *models.PartialChain) string {
	if chain.BrokenAt != nil {
		return chain.BrokenAt.Hop
	}
	for _, b := range chain.Branches {
		if b.BrokenAt != nil {
			return b.BrokenAt.Hop
		}
	}
	return ""
}

func sortedImpacts(group map[uuid.UUID]*models.ProcessImpact) []models.ProcessImpact {
	impacts := make([]models.ProcessImpact, 0, len(group))
	for _, impact := range group {
		impacts = append(impacts, *impact)
	}
	sort.Slice(impacts, func(i, j int) bool {
		if impacts[i].Name != impacts[j].Name {
			return impacts[i].Name < impacts[j].Name
		}
		return impacts[i].NodeID.String() < impacts[j].NodeID.String()
	})
	return impacts
}
