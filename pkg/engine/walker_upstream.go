package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

func (s *traceService) TraceUpstream(ctx context.Context, sc scope.Scope, defectID uuid.UUID) (*models.PartialChain, error) {
	chains, err := s.TraceUpstreamBatch(ctx, sc, []uuid.UUID{defectID})
	if err != nil {
		return nil, err
	}
	chain, ok := chains[defectID]
	if !ok {
		return nil, apperrors.ErrNotFoundInScope
	}
	return chain, nil
}

// upstreamIndex holds the batch-fetched artifacts one upstream pass needs.
// Everything below the defect prefix is assembled from these maps without
// further queries.
type upstreamIndex struct {
	executions map[uuid.UUID]*models.TestExecution
	testCases  map[uuid.UUID]*models.TestCase
	links      map[uuid.UUID][]*models.TraceLink
	reqs       map[uuid.UUID]*models.Requirement
	builds     map[uuid.UUID]*models.BuildItem
	configs    map[uuid.UUID]*models.ConfigItem
	steps      map[uuid.UUID]*models.ProcessStep
	levels     map[uuid.UUID]*models.ProcessLevel
}

func (s *traceService) TraceUpstreamBatch(ctx context.Context, sc scope.Scope, defectIDs []uuid.UUID) (map[uuid.UUID]*models.PartialChain, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	found, err := s.defects.GetByIDs(ctx, sc, defectIDs)
	if err != nil {
		return nil, err
	}

	chains := make(map[uuid.UUID]*models.PartialChain, len(found))
	idx, err := s.loadUpstreamIndex(ctx, sc, found, chains)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		// Deadline hit mid-load; chains already tagged truncated.
		return chains, nil
	}

	for _, d := range found {
		chain, ok := chains[d.ID]
		if !ok || chain.BrokenAt != nil || chain.Truncated {
			continue
		}
		s.assembleUpstream(sc, d, chain, idx)
	}

	return chains, nil
}

// loadUpstreamIndex issues one grouped fetch per hop level for the whole
// defect set. It seeds chains with the defect prefix (defect, execution, test
// case) as it goes; a nil index return means the deadline expired and the
// chains were tagged truncated.
func (s *traceService) loadUpstreamIndex(ctx context.Context, sc scope.Scope, found []*models.Defect, chains map[uuid.UUID]*models.PartialChain) (*upstreamIndex, error) {
	idx := &upstreamIndex{}

	var execIDs []uuid.UUID
	for _, d := range found {
		chains[d.ID] = &models.PartialChain{Nodes: []models.NodeRef{d.Ref()}}
		if d.TestExecutionID == nil {
			// Terminal: a defect without an execution is its own chain.
			chains[d.ID].BrokenAt = breakAt(models.HopDefectExecution, d.Ref())
			continue
		}
		execIDs = append(execIDs, *d.TestExecutionID)
	}

	if s.truncateOnExpiry(ctx, chains) {
		return nil, nil
	}
	execs, err := s.executions.GetByIDs(ctx, sc, execIDs)
	if err != nil {
		return nil, err
	}
	idx.executions = make(map[uuid.UUID]*models.TestExecution, len(execs))
	var testCaseIDs []uuid.UUID
	for _, e := range execs {
		idx.executions[e.ID] = e
		testCaseIDs = append(testCaseIDs, e.TestCaseID)
	}

	if s.truncateOnExpiry(ctx, chains) {
		return nil, nil
	}
	cases, err := s.testCases.GetByIDs(ctx, sc, testCaseIDs)
	if err != nil {
		return nil, err
	}
	idx.testCases = make(map[uuid.UUID]*models.TestCase, len(cases))
	caseIDs := make([]uuid.UUID, 0, len(cases))
	for _, tc := range cases {
		idx.testCases[tc.ID] = tc
		caseIDs = append(caseIDs, tc.ID)
	}

	if s.truncateOnExpiry(ctx, chains) {
		return nil, nil
	}
	idx.links, err = s.links.ListByOwners(ctx, sc, models.ArtifactTestCase, caseIDs)
	if err != nil {
		return nil, err
	}

	var reqIDs, buildIDs, configIDs, stepIDs []uuid.UUID
	for _, links := range idx.links {
		for _, link := range links {
			switch link.LinkedType {
			case models.ArtifactRequirement:
				reqIDs = append(reqIDs, link.LinkedID)
			case models.ArtifactBuildItem:
				buildIDs = append(buildIDs, link.LinkedID)
			case models.ArtifactConfigItem:
				configIDs = append(configIDs, link.LinkedID)
			case models.ArtifactProcessStep:
				stepIDs = append(stepIDs, link.LinkedID)
			default:
				s.logger.Warn("trace link with unregistered linked type",
					zap.String("link_id", link.ID.String()),
					zap.String("linked_type", string(link.LinkedType)))
			}
		}
	}

	if s.truncateOnExpiry(ctx, chains) {
		return nil, nil
	}
	builds, err := s.buildItems.GetByIDs(ctx, sc, buildIDs)
	if err != nil {
		return nil, err
	}
	idx.builds = make(map[uuid.UUID]*models.BuildItem, len(builds))
	for _, b := range builds {
		idx.builds[b.ID] = b
		if b.RequirementID != nil {
			reqIDs = append(reqIDs, *b.RequirementID)
		}
	}
	configs, err := s.configItems.GetByIDs(ctx, sc, configIDs)
	if err != nil {
		return nil, err
	}
	idx.configs = make(map[uuid.UUID]*models.ConfigItem, len(configs))
	for _, c := range configs {
		idx.configs[c.ID] = c
		if c.RequirementID != nil {
			reqIDs = append(reqIDs, *c.RequirementID)
		}
	}

	if s.truncateOnExpiry(ctx, chains) {
		return nil, nil
	}
	reqs, err := s.requirements.GetByIDs(ctx, sc, reqIDs)
	if err != nil {
		return nil, err
	}
	idx.reqs = make(map[uuid.UUID]*models.Requirement, len(reqs))
	for _, r := range reqs {
		idx.reqs[r.ID] = r
		if r.ProcessStepID != nil {
			stepIDs = append(stepIDs, *r.ProcessStepID)
		}
	}

	if s.truncateOnExpiry(ctx, chains) {
		return nil, nil
	}
	steps, err := s.steps.GetByIDs(ctx, sc, stepIDs)
	if err != nil {
		return nil, err
	}
	idx.steps = make(map[uuid.UUID]*models.ProcessStep, len(steps))
	var levelIDs []uuid.UUID
	for _, st := range steps {
		idx.steps[st.ID] = st
		levelIDs = append(levelIDs, st.ProcessLevelID)
	}

	// Climb the hierarchy with one grouped fetch per level, L4 up to L1.
	idx.levels = make(map[uuid.UUID]*models.ProcessLevel)
	for hop := 0; hop < 4; hop++ {
		if len(levelIDs) == 0 {
			break
		}
		if s.truncateOnExpiry(ctx, chains) {
			return nil, nil
		}
		levels, err := s.levels.GetByIDs(ctx, sc, levelIDs)
		if err != nil {
			return nil, err
		}
		levelIDs = levelIDs[:0]
		for _, lvl := range levels {
			idx.levels[lvl.ID] = lvl
			if lvl.ParentID != nil {
				if _, seen := idx.levels[*lvl.ParentID]; !seen {
					levelIDs = append(levelIDs, *lvl.ParentID)
				}
			}
		}
	}

	return idx, nil
}

// truncateOnExpiry tags every chain as truncated when the caller's deadline
// has passed. Partial results beat failure for a reporting engine.
func (s *traceService) truncateOnExpiry(ctx context.Context, chains map[uuid.UUID]*models.PartialChain) bool {
	if !expired(ctx) {
		return false
	}
	for _, chain := range chains {
		chain.Truncated = true
	}
	return true
}

// assembleUpstream builds one defect's chain from the loaded index: the
// shared prefix (defect, execution, test case) plus one branch per trace
// link the test case owns.
func (s *traceService) assembleUpstream(sc scope.Scope, d *models.Defect, chain *models.PartialChain, idx *upstreamIndex) {
	exec, ok := idx.executions[*d.TestExecutionID]
	if !ok {
		chain.BrokenAt = breakAt(models.HopDefectExecution, d.Ref())
		return
	}
	chain.Nodes = append(chain.Nodes, exec.Ref())

	tc, ok := idx.testCases[exec.TestCaseID]
	if !ok {
		chain.BrokenAt = breakAt(models.HopExecutionTestCase, exec.Ref())
		return
	}
	chain.Nodes = append(chain.Nodes, tc.Ref())

	links := idx.links[tc.ID]
	if len(links) == 0 {
		chain.BrokenAt = breakAt(models.HopTestCaseLinked, tc.Ref())
		return
	}

	// A test case may carry parallel links to several artifact kinds at once;
	// every resolved branch is returned, tagged with its link type.
	for _, link := range links {
		chain.Branches = append(chain.Branches, s.upstreamBranch(link, tc, idx))
	}
}

// upstreamBranch walks one trace link from its test case up to the top of
// the process hierarchy.
func (s *traceService) upstreamBranch(link *models.TraceLink, tc *models.TestCase, idx *upstreamIndex) models.ChainBranch {
	branch := models.ChainBranch{LinkedType: link.LinkedType}

	var req *models.Requirement
	var itemHop string

	switch link.LinkedType {
	case models.ArtifactRequirement:
		r, ok := idx.reqs[link.LinkedID]
		if !ok {
			branch.BrokenAt = breakAt(models.HopTestCaseLinked, tc.Ref())
			return branch
		}
		branch.Nodes = append(branch.Nodes, r.Ref())
		req = r

	case models.ArtifactBuildItem:
		item, ok := idx.builds[link.LinkedID]
		if !ok {
			branch.BrokenAt = breakAt(models.HopTestCaseLinked, tc.Ref())
			return branch
		}
		branch.Nodes = append(branch.Nodes, item.Ref())
		itemHop = models.HopBuildItemStep
		if item.RequirementID == nil {
			branch.BrokenAt = breakAt(itemHop, item.Ref())
			return branch
		}
		r, ok := idx.reqs[*item.RequirementID]
		if !ok {
			branch.BrokenAt = breakAt(itemHop, item.Ref())
			return branch
		}
		branch.Nodes = append(branch.Nodes, r.Ref())
		req = r

	case models.ArtifactConfigItem:
		item, ok := idx.configs[link.LinkedID]
		if !ok {
			branch.BrokenAt = breakAt(models.HopTestCaseLinked, tc.Ref())
			return branch
		}
		branch.Nodes = append(branch.Nodes, item.Ref())
		itemHop = models.HopConfigItemStep
		if item.RequirementID == nil {
			branch.BrokenAt = breakAt(itemHop, item.Ref())
			return branch
		}
		r, ok := idx.reqs[*item.RequirementID]
		if !ok {
			branch.BrokenAt = breakAt(itemHop, item.Ref())
			return branch
		}
		branch.Nodes = append(branch.Nodes, r.Ref())
		req = r

	case models.ArtifactProcessStep:
		step, ok := idx.steps[link.LinkedID]
		if !ok {
			branch.BrokenAt = breakAt(models.HopTestCaseLinked, tc.Ref())
			return branch
		}
		branch.Nodes = append(branch.Nodes, step.Ref())
		s.climbLevels(&branch, step, idx)
		return branch

	default:
		branch.BrokenAt = breakAt(models.HopTestCaseLinked, tc.Ref())
		return branch
	}

	if req.ProcessStepID == nil {
		branch.BrokenAt = breakAt(models.HopRequirementStep, req.Ref())
		return branch
	}
	step, ok := idx.steps[*req.ProcessStepID]
	if !ok {
		branch.BrokenAt = breakAt(models.HopRequirementStep, req.Ref())
		return branch
	}
	branch.Nodes = append(branch.Nodes, step.Ref())
	s.climbLevels(&branch, step, idx)
	return branch
}

// climbLevels appends the process hierarchy from the step's L4 node to the
// L1 root, or records where the climb broke off.
func (s *traceService) climbLevels(branch *models.ChainBranch, step *models.ProcessStep, idx *upstreamIndex) {
	level, ok := idx.levels[step.ProcessLevelID]
	if !ok {
		branch.BrokenAt = breakAt(models.HopStepProcessLevel, step.Ref())
		return
	}
	branch.Nodes = append(branch.Nodes, level.Ref())

	for level.Level > models.LevelValueChain {
		if level.ParentID == nil {
			branch.BrokenAt = breakAt(models.HopProcessLevelParent, level.Ref())
			return
		}
		parent, ok := idx.levels[*level.ParentID]
		if !ok {
			branch.BrokenAt = breakAt(models.HopProcessLevelParent, level.Ref())
			return
		}
		branch.Nodes = append(branch.Nodes, parent.Ref())
		level = parent
	}
}
