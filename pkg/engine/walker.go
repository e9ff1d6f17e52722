package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/repositories"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// TraceService walks the artifact graph in both directions. Traversals are
// bounded by the artifact taxonomy (at most seven hops end to end) and never
// fail on a broken chain: missing edges terminate the branch and are recorded
// in the result. Errors are reserved for scope violations, unknown entry ids
// and infrastructure failures.
type TraceService interface {
	// TraceDownstream walks requirement -> derived artifact -> test cases ->
	// executions -> defects.
	TraceDownstream(ctx context.Context, sc scope.Scope, requirementID uuid.UUID) (*models.PartialChain, error)
	// TraceUpstream walks defect -> execution -> test case and then fans out
	// across every trace link the test case carries, one branch per link.
	TraceUpstream(ctx context.Context, sc scope.Scope, defectID uuid.UUID) (*models.PartialChain, error)
	// TraceUpstreamBatch is the bulk variant: one grouped fetch per hop level
	// regardless of how many defects are passed. Ids that do not resolve under
	// the scope are absent from the result map.
	TraceUpstreamBatch(ctx context.Context, sc scope.Scope, defectIDs []uuid.UUID) (map[uuid.UUID]*models.PartialChain, error)
}

type traceService struct {
	levels       repositories.ProcessLevelRepository
	steps        repositories.ProcessStepRepository
	requirements repositories.RequirementRepository
	buildItems   repositories.BuildItemRepository
	configItems  repositories.ConfigItemRepository
	testCases    repositories.TestCaseRepository
	executions   repositories.TestExecutionRepository
	defects      repositories.DefectRepository
	links        repositories.TraceLinkRepository
	resolver     *LinkResolver
	logger       *zap.Logger
}

// NewTraceService creates a TraceService over the typed repositories.
func NewTraceService(
	levels repositories.ProcessLevelRepository,
	steps repositories.ProcessStepRepository,
	requirements repositories.RequirementRepository,
	buildItems repositories.BuildItemRepository,
	configItems repositories.ConfigItemRepository,
	testCases repositories.TestCaseRepository,
	executions repositories.TestExecutionRepository,
	defects repositories.DefectRepository,
	links repositories.TraceLinkRepository,
	resolver *LinkResolver,
	logger *zap.Logger,
) TraceService {
	return &traceService{
		levels:       levels,
		steps:        steps,
		requirements: requirements,
		buildItems:   buildItems,
		configItems:  configItems,
		testCases:    testCases,
		executions:   executions,
		defects:      defects,
		links:        links,
		resolver:     resolver,
		logger:       logger,
	}
}

var _ TraceService = (*traceService)(nil)

// expired reports whether the caller's deadline has passed. Walkers check it
// between hops and return the chain accumulated so far, truncated.
func expired(ctx context.Context) bool {
	return ctx.Err() != nil
}

func breakAt(hop string, last models.NodeRef) *models.BreakPoint {
	return &models.BreakPoint{Hop: hop, LastType: last.Type, LastID: last.ID}
}

func (s *traceService) TraceDownstream(ctx context.Context, sc scope.Scope, requirementID uuid.UUID) (*models.PartialChain, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	req, err := s.requirements.GetByID(ctx, sc, requirementID)
	if err != nil {
		return nil, err
	}

	chain := &models.PartialChain{Nodes: []models.NodeRef{req.Ref()}}

	if !req.HasDerivedArtifact() {
		chain.BrokenAt = breakAt(models.HopRequirementDerived, req.Ref())
		return chain, nil
	}
	if expired(ctx) {
		chain.Truncated = true
		return chain, nil
	}

	artifact, outcome, err := s.resolver.Resolve(ctx, sc, *req.DerivedType, *req.DerivedID)
	if err != nil {
		return nil, err
	}
	if outcome != OutcomeFound {
		if outcome == OutcomeUnknownType {
			s.logger.Warn("unknown derived artifact type on requirement",
				zap.String("requirement_id", req.ID.String()),
				zap.String("derived_type", string(*req.DerivedType)))
		}
		chain.BrokenAt = breakAt(models.HopRequirementDerived, req.Ref())
		return chain, nil
	}
	artifactRef := artifact.Ref()
	chain.Nodes = append(chain.Nodes, artifactRef)

	if expired(ctx) {
		chain.Truncated = true
		return chain, nil
	}

	// Test cases reference the artifact through trace links they own.
	inbound, err := s.links.ListByLinked(ctx, sc, artifactRef.Type, artifactRef.ID)
	if err != nil {
		return nil, err
	}
	var testCaseIDs []uuid.UUID
	for _, link := range inbound {
		if link.OwnerType == models.ArtifactTestCase {
			testCaseIDs = append(testCaseIDs, link.OwnerID)
		}
	}
	if len(testCaseIDs) == 0 {
		chain.BrokenAt = breakAt(models.HopDerivedTestCase, artifactRef)
		return chain, nil
	}

	cases, err := s.testCases.GetByIDs(ctx, sc, testCaseIDs)
	if err != nil {
		return nil, err
	}
	casesByID := make(map[uuid.UUID]*models.TestCase, len(cases))
	caseIDs := make([]uuid.UUID, 0, len(cases))
	for _, tc := range cases {
		casesByID[tc.ID] = tc
		caseIDs = append(caseIDs, tc.ID)
	}

	if expired(ctx) {
		chain.Truncated = true
		return chain, nil
	}

	execsByCase, err := s.executions.ListByTestCases(ctx, sc, caseIDs)
	if err != nil {
		return nil, err
	}
	var execIDs []uuid.UUID
	for _, execs := range execsByCase {
		for _, e := range execs {
			execIDs = append(execIDs, e.ID)
		}
	}

	if expired(ctx) {
		chain.Truncated = true
		return chain, nil
	}

	defectsByExec, err := s.defects.ListByExecutions(ctx, sc, execIDs)
	if err != nil {
		return nil, err
	}

	for _, tcID := range testCaseIDs {
		tc, ok := casesByID[tcID]
		if !ok {
			// Link owner vanished from scope; record the dead edge.
			chain.Branches = append(chain.Branches, models.ChainBranch{
				LinkedType: models.ArtifactTestCase,
				BrokenAt:   breakAt(models.HopDerivedTestCase, artifactRef),
			})
			continue
		}

		branch := models.ChainBranch{
			LinkedType: models.ArtifactTestCase,
			Nodes:      []models.NodeRef{tc.Ref()},
		}
		execs := execsByCase[tc.ID]
		if len(execs) == 0 {
			branch.BrokenAt = breakAt(models.HopTestCaseExecution, tc.Ref())
			chain.Branches = append(chain.Branches, branch)
			continue
		}
		for _, exec := range execs {
			branch.Nodes = append(branch.Nodes, exec.Ref())
			for _, d := range defectsByExec[exec.ID] {
				branch.Nodes = append(branch.Nodes, d.Ref())
			}
		}
		chain.Branches = append(chain.Branches, branch)
	}

	return chain, nil
}
