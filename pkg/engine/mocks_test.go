package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/repositories"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// callLog counts repository method invocations so traversal tests can assert
// grouped fetching.
type callLog struct {
	counts map[string]int
}

func newCallLog() *callLog {
	return &callLog{counts: make(map[string]int)}
}

func (l *callLog) add(name string) {
	l.counts[name]++
}

func (l *callLog) total() int {
	n := 0
	for _, c := range l.counts {
		n += c
	}
	return n
}

func scopeMatch(sc scope.Scope, tenantID, projectID uuid.UUID) bool {
	return sc.TenantID == tenantID && sc.ProjectID == projectID
}

// --- process levels ---

type mockLevelRepo struct {
	log   *callLog
	items []*models.ProcessLevel

	// beforeWrite runs ahead of every versioned write, letting a test slip a
	// concurrent update in between read and write.
	beforeWrite func()
}

var _ repositories.ProcessLevelRepository = (*mockLevelRepo)(nil)

func (m *mockLevelRepo) find(sc scope.Scope, id uuid.UUID) *models.ProcessLevel {
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			return it
		}
	}
	return nil
}

func (m *mockLevelRepo) Create(ctx context.Context, sc scope.Scope, node *models.ProcessLevel) error {
	m.log.add("levels.Create")
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	node.TenantID = sc.TenantID
	node.ProjectID = sc.ProjectID
	m.items = append(m.items, node)
	return nil
}

func (m *mockLevelRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ProcessLevel, error) {
	m.log.add("levels.GetByID")
	if it := m.find(sc, id); it != nil {
		cp := *it
		return &cp, nil
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockLevelRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ProcessLevel, error) {
	m.log.add("levels.GetByIDs")
	var out []*models.ProcessLevel
	for _, id := range ids {
		if it := m.find(sc, id); it != nil {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockLevelRepo) ListChildren(ctx context.Context, sc scope.Scope, parentID uuid.UUID) ([]*models.ProcessLevel, error) {
	m.log.add("levels.ListChildren")
	var out []*models.ProcessLevel
	for _, it := range m.items {
		if it.ParentID != nil && *it.ParentID == parentID && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockLevelRepo) UpdateFitStatus(ctx context.Context, sc scope.Scope, id uuid.UUID, version int, status models.FitStatus) error {
	m.log.add("levels.UpdateFitStatus")
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	it := m.find(sc, id)
	if it == nil {
		return apperrors.ErrNotFoundInScope
	}
	if it.Version != version {
		return apperrors.ErrConcurrentUpdate
	}
	it.FitStatus = status
	it.Version++
	return nil
}

func (m *mockLevelRepo) SetOverride(ctx context.Context, sc scope.Scope, id uuid.UUID, version int, overridden bool, status models.FitStatus) error {
	m.log.add("levels.SetOverride")
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	it := m.find(sc, id)
	if it == nil {
		return apperrors.ErrNotFoundInScope
	}
	if it.Version != version {
		return apperrors.ErrConcurrentUpdate
	}
	it.FitOverridden = overridden
	it.FitStatus = status
	it.Version++
	return nil
}

func (m *mockLevelRepo) SetDisabled(ctx context.Context, sc scope.Scope, id uuid.UUID, disabled bool) error {
	m.log.add("levels.SetDisabled")
	it := m.find(sc, id)
	if it == nil {
		return apperrors.ErrNotFoundInScope
	}
	it.Disabled = disabled
	return nil
}

// --- process steps ---

type mockStepRepo struct {
	log   *callLog
	items []*models.ProcessStep
}

var _ repositories.ProcessStepRepository = (*mockStepRepo)(nil)

func (m *mockStepRepo) Create(ctx context.Context, sc scope.Scope, step *models.ProcessStep) error {
	m.log.add("steps.Create")
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	step.TenantID = sc.TenantID
	step.ProjectID = sc.ProjectID
	m.items = append(m.items, step)
	return nil
}

func (m *mockStepRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ProcessStep, error) {
	m.log.add("steps.GetByID")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockStepRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ProcessStep, error) {
	m.log.add("steps.GetByIDs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.ProcessStep
	for _, it := range m.items {
		if want[it.ID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStepRepo) GetOpenByProcessLevel(ctx context.Context, sc scope.Scope, processLevelID uuid.UUID) (*models.ProcessStep, error) {
	m.log.add("steps.GetOpenByProcessLevel")
	for _, it := range m.items {
		if it.ProcessLevelID == processLevelID && !it.Superseded && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockStepRepo) SupersedeOpen(ctx context.Context, sc scope.Scope, processLevelID uuid.UUID) error {
	m.log.add("steps.SupersedeOpen")
	for _, it := range m.items {
		if it.ProcessLevelID == processLevelID && !it.Superseded && scopeMatch(sc, it.TenantID, it.ProjectID) {
			it.Superseded = true
		}
	}
	return nil
}

// --- requirements ---

type mockRequirementRepo struct {
	log   *callLog
	items []*models.Requirement
}

var _ repositories.RequirementRepository = (*mockRequirementRepo)(nil)

func (m *mockRequirementRepo) Create(ctx context.Context, sc scope.Scope, req *models.Requirement) error {
	m.log.add("requirements.Create")
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.TenantID = sc.TenantID
	req.ProjectID = sc.ProjectID
	m.items = append(m.items, req)
	return nil
}

func (m *mockRequirementRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.Requirement, error) {
	m.log.add("requirements.GetByID")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockRequirementRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.Requirement, error) {
	m.log.add("requirements.GetByIDs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.Requirement
	for _, it := range m.items {
		if want[it.ID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRequirementRepo) List(ctx context.Context, sc scope.Scope, filter models.CoverageFilter) ([]*models.Requirement, error) {
	m.log.add("requirements.List")
	var out []*models.Requirement
	for _, it := range m.items {
		if !scopeMatch(sc, it.TenantID, it.ProjectID) {
			continue
		}
		if filter.Classification != "" && it.Classification != filter.Classification {
			continue
		}
		if filter.Priority != "" && it.Priority != filter.Priority {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRequirementRepo) ListByProcessStep(ctx context.Context, sc scope.Scope, processStepID uuid.UUID) ([]*models.Requirement, error) {
	m.log.add("requirements.ListByProcessStep")
	var out []*models.Requirement
	for _, it := range m.items {
		if it.ProcessStepID != nil && *it.ProcessStepID == processStepID && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRequirementRepo) SetDerivedArtifact(ctx context.Context, sc scope.Scope, id uuid.UUID, derivedType models.ArtifactType, derivedID uuid.UUID) error {
	m.log.add("requirements.SetDerivedArtifact")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			it.DerivedType = &derivedType
			it.DerivedID = &derivedID
			it.Status = models.RequirementStatusConverted
			return nil
		}
	}
	return apperrors.ErrNotFoundInScope
}

func (m *mockRequirementRepo) SetParent(ctx context.Context, sc scope.Scope, id uuid.UUID, parentID *uuid.UUID) error {
	m.log.add("requirements.SetParent")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			it.ParentID = parentID
			return nil
		}
	}
	return apperrors.ErrNotFoundInScope
}

// --- build items ---

type mockBuildItemRepo struct {
	log   *callLog
	items []*models.BuildItem
}

var _ repositories.BuildItemRepository = (*mockBuildItemRepo)(nil)

func (m *mockBuildItemRepo) Create(ctx context.Context, sc scope.Scope, item *models.BuildItem) error {
	m.log.add("builds.Create")
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.TenantID = sc.TenantID
	item.ProjectID = sc.ProjectID
	m.items = append(m.items, item)
	return nil
}

func (m *mockBuildItemRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.BuildItem, error) {
	m.log.add("builds.GetByID")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockBuildItemRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.BuildItem, error) {
	m.log.add("builds.GetByIDs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.BuildItem
	for _, it := range m.items {
		if want[it.ID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- config items ---

type mockConfigItemRepo struct {
	log   *callLog
	items []*models.ConfigItem
}

var _ repositories.ConfigItemRepository = (*mockConfigItemRepo)(nil)

func (m *mockConfigItemRepo) Create(ctx context.Context, sc scope.Scope, item *models.ConfigItem) error {
	m.log.add("configs.Create")
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.TenantID = sc.TenantID
	item.ProjectID = sc.ProjectID
	m.items = append(m.items, item)
	return nil
}

func (m *mockConfigItemRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ConfigItem, error) {
	m.log.add("configs.GetByID")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockConfigItemRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ConfigItem, error) {
	m.log.add("configs.GetByIDs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.ConfigItem
	for _, it := range m.items {
		if want[it.ID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- test cases ---

type mockTestCaseRepo struct {
	log   *callLog
	items []*models.TestCase
}

var _ repositories.TestCaseRepository = (*mockTestCaseRepo)(nil)

func (m *mockTestCaseRepo) Create(ctx context.Context, sc scope.Scope, tc *models.TestCase) error {
	m.log.add("testCases.Create")
	if tc.ID == uuid.Nil {
		tc.ID = uuid.New()
	}
	tc.TenantID = sc.TenantID
	tc.ProjectID = sc.ProjectID
	m.items = append(m.items, tc)
	return nil
}

func (m *mockTestCaseRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.TestCase, error) {
	m.log.add("testCases.GetByID")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockTestCaseRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.TestCase, error) {
	m.log.add("testCases.GetByIDs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.TestCase
	for _, it := range m.items {
		if want[it.ID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- test executions ---

type mockExecutionRepo struct {
	log   *callLog
	items []*models.TestExecution
}

var _ repositories.TestExecutionRepository = (*mockExecutionRepo)(nil)

func (m *mockExecutionRepo) Create(ctx context.Context, sc scope.Scope, exec *models.TestExecution) error {
	m.log.add("executions.Create")
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	exec.TenantID = sc.TenantID
	exec.ProjectID = sc.ProjectID
	m.items = append(m.items, exec)
	return nil
}

func (m *mockExecutionRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.TestExecution, error) {
	m.log.add("executions.GetByID")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockExecutionRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.TestExecution, error) {
	m.log.add("executions.GetByIDs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.TestExecution
	for _, it := range m.items {
		if want[it.ID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockExecutionRepo) ListByTestCase(ctx context.Context, sc scope.Scope, testCaseID uuid.UUID) ([]*models.TestExecution, error) {
	m.log.add("executions.ListByTestCase")
	var out []*models.TestExecution
	for _, it := range m.items {
		if it.TestCaseID == testCaseID && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockExecutionRepo) ListByTestCases(ctx context.Context, sc scope.Scope, testCaseIDs []uuid.UUID) (map[uuid.UUID][]*models.TestExecution, error) {
	m.log.add("executions.ListByTestCases")
	want := make(map[uuid.UUID]bool, len(testCaseIDs))
	for _, id := range testCaseIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID][]*models.TestExecution)
	for _, it := range m.items {
		if want[it.TestCaseID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out[it.TestCaseID] = append(out[it.TestCaseID], &cp)
		}
	}
	return out, nil
}

// --- defects ---

type mockDefectRepo struct {
	log   *callLog
	items []*models.Defect
}

var _ repositories.DefectRepository = (*mockDefectRepo)(nil)

func (m *mockDefectRepo) Create(ctx context.Context, sc scope.Scope, defect *models.Defect) error {
	m.log.add("defects.Create")
	if defect.ID == uuid.Nil {
		defect.ID = uuid.New()
	}
	defect.TenantID = sc.TenantID
	defect.ProjectID = sc.ProjectID
	m.items = append(m.items, defect)
	return nil
}

func (m *mockDefectRepo) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.Defect, error) {
	m.log.add("defects.GetByID")
	for _, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFoundInScope
}

func (m *mockDefectRepo) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.Defect, error) {
	m.log.add("defects.GetByIDs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.Defect
	for _, it := range m.items {
		if want[it.ID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDefectRepo) List(ctx context.Context, sc scope.Scope) ([]*models.Defect, error) {
	m.log.add("defects.List")
	var out []*models.Defect
	for _, it := range m.items {
		if scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDefectRepo) ListByExecutions(ctx context.Context, sc scope.Scope, executionIDs []uuid.UUID) (map[uuid.UUID][]*models.Defect, error) {
	m.log.add("defects.ListByExecutions")
	want := make(map[uuid.UUID]bool, len(executionIDs))
	for _, id := range executionIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID][]*models.Defect)
	for _, it := range m.items {
		if it.TestExecutionID != nil && want[*it.TestExecutionID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out[*it.TestExecutionID] = append(out[*it.TestExecutionID], &cp)
		}
	}
	return out, nil
}

// --- trace links ---

type mockLinkRepo struct {
	log   *callLog
	items []*models.TraceLink
}

var _ repositories.TraceLinkRepository = (*mockLinkRepo)(nil)

func (m *mockLinkRepo) Create(ctx context.Context, sc scope.Scope, link *models.TraceLink) error {
	m.log.add("links.Create")
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.TenantID = sc.TenantID
	link.ProjectID = sc.ProjectID
	m.items = append(m.items, link)
	return nil
}

func (m *mockLinkRepo) Delete(ctx context.Context, sc scope.Scope, id uuid.UUID) error {
	m.log.add("links.Delete")
	for i, it := range m.items {
		if it.ID == id && scopeMatch(sc, it.TenantID, it.ProjectID) {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFoundInScope
}

func (m *mockLinkRepo) ListByOwners(ctx context.Context, sc scope.Scope, ownerType models.ArtifactType, ownerIDs []uuid.UUID) (map[uuid.UUID][]*models.TraceLink, error) {
	m.log.add("links.ListByOwners")
	want := make(map[uuid.UUID]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID][]*models.TraceLink)
	for _, it := range m.items {
		if it.OwnerType == ownerType && want[it.OwnerID] && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out[it.OwnerID] = append(out[it.OwnerID], &cp)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) ListByLinked(ctx context.Context, sc scope.Scope, linkedType models.ArtifactType, linkedID uuid.UUID) ([]*models.TraceLink, error) {
	m.log.add("links.ListByLinked")
	var out []*models.TraceLink
	for _, it := range m.items {
		if it.LinkedType == linkedType && it.LinkedID == linkedID && scopeMatch(sc, it.TenantID, it.ProjectID) {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}
