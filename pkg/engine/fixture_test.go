package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// fixture wires the in-memory repositories into the engine services the way
// main wires the real ones.
type fixture struct {
	log          *callLog
	levels       *mockLevelRepo
	steps        *mockStepRepo
	requirements *mockRequirementRepo
	builds       *mockBuildItemRepo
	configs      *mockConfigItemRepo
	testCases    *mockTestCaseRepo
	executions   *mockExecutionRepo
	defects      *mockDefectRepo
	links        *mockLinkRepo
}

func newFixture() *fixture {
	log := newCallLog()
	return &fixture{
		log:          log,
		levels:       &mockLevelRepo{log: log},
		steps:        &mockStepRepo{log: log},
		requirements: &mockRequirementRepo{log: log},
		builds:       &mockBuildItemRepo{log: log},
		configs:      &mockConfigItemRepo{log: log},
		testCases:    &mockTestCaseRepo{log: log},
		executions:   &mockExecutionRepo{log: log},
		defects:      &mockDefectRepo{log: log},
		links:        &mockLinkRepo{log: log},
	}
}

func (f *fixture) resolver() *LinkResolver {
	return NewLinkResolver(f.levels, f.steps, f.requirements, f.builds, f.configs, f.testCases)
}

func (f *fixture) tracer() TraceService {
	return NewTraceService(f.levels, f.steps, f.requirements, f.builds, f.configs,
		f.testCases, f.executions, f.defects, f.links, f.resolver(), zap.NewNop())
}

func (f *fixture) propagator(gapThreshold float64) PropagationService {
	return NewPropagationService(f.levels, f.steps, gapThreshold, zap.NewNop())
}

func (f *fixture) coverage() CoverageService {
	return NewCoverageService(f.requirements, f.tracer(), zap.NewNop())
}

func (f *fixture) impact() ImpactService {
	return NewImpactService(f.levels, f.tracer(), zap.NewNop())
}

func testScope() scope.Scope {
	return scope.Scope{TenantID: uuid.New(), ProjectID: uuid.New()}
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func fitPtr(s models.FitStatus) *models.FitStatus {
	return &s
}

// addLevel creates a process level directly in the mock store.
func (f *fixture) addLevel(sc scope.Scope, level int, parentID *uuid.UUID, status models.FitStatus) *models.ProcessLevel {
	node := &models.ProcessLevel{
		Level:     level,
		ParentID:  parentID,
		Name:      "L" + string(rune('0'+level)) + " node",
		FitStatus: status,
		Version:   1,
	}
	_ = f.levels.Create(context.Background(), sc, node)
	return node
}

func (f *fixture) addStep(sc scope.Scope, processLevelID uuid.UUID, decision *models.FitStatus) *models.ProcessStep {
	step := &models.ProcessStep{
		ProcessLevelID: processLevelID,
		WorkshopID:     uuid.New(),
		FitDecision:    decision,
	}
	_ = f.steps.Create(context.Background(), sc, step)
	return step
}

func (f *fixture) addRequirement(sc scope.Scope, stepID *uuid.UUID) *models.Requirement {
	req := &models.Requirement{
		ProcessStepID:  stepID,
		Title:          "requirement",
		Status:         models.RequirementStatusApproved,
		Classification: models.FitStatusGap,
		Priority:       models.PriorityMedium,
	}
	_ = f.requirements.Create(context.Background(), sc, req)
	return req
}

func (f *fixture) addBuildItem(sc scope.Scope, requirementID *uuid.UUID) *models.BuildItem {
	item := &models.BuildItem{RequirementID: requirementID, Title: "build item"}
	_ = f.builds.Create(context.Background(), sc, item)
	return item
}

func (f *fixture) addConfigItem(sc scope.Scope, requirementID *uuid.UUID) *models.ConfigItem {
	item := &models.ConfigItem{RequirementID: requirementID, Title: "config item"}
	_ = f.configs.Create(context.Background(), sc, item)
	return item
}

func (f *fixture) addTestCase(sc scope.Scope) *models.TestCase {
	tc := &models.TestCase{Title: "test case"}
	_ = f.testCases.Create(context.Background(), sc, tc)
	return tc
}

func (f *fixture) addExecution(sc scope.Scope, testCaseID uuid.UUID, result string) *models.TestExecution {
	exec := &models.TestExecution{TestCaseID: testCaseID, Result: result}
	_ = f.executions.Create(context.Background(), sc, exec)
	return exec
}

func (f *fixture) addDefect(sc scope.Scope, executionID *uuid.UUID) *models.Defect {
	defect := &models.Defect{TestExecutionID: executionID, Title: "defect", Severity: "high"}
	_ = f.defects.Create(context.Background(), sc, defect)
	return defect
}

func (f *fixture) link(sc scope.Scope, ownerType models.ArtifactType, ownerID uuid.UUID, linkedType models.ArtifactType, linkedID uuid.UUID) *models.TraceLink {
	l := &models.TraceLink{OwnerType: ownerType, OwnerID: ownerID, LinkedType: linkedType, LinkedID: linkedID}
	_ = f.links.Create(context.Background(), sc, l)
	return l
}

// convert marks a requirement as converted into the given artifact.
func (f *fixture) convert(sc scope.Scope, req *models.Requirement, derivedType models.ArtifactType, derivedID uuid.UUID) {
	_ = f.requirements.SetDerivedArtifact(context.Background(), sc, req.ID, derivedType, derivedID)
}
