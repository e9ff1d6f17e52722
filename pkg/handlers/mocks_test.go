package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"

	"github.com/traceway-io/traceway-engine/pkg/auth"
	"github.com/traceway-io/traceway-engine/pkg/engine"
	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// authedRequest builds a request with tenant/project claims in context and
// the pid path value set, the way the auth and tenant middleware leave it.
func authedRequest(method, target string, sc scope.Scope, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return withScope(req, sc)
}

func withScope(req *http.Request, sc scope.Scope) *http.Request {
	req.SetPathValue("pid", sc.ProjectID.String())
	claims := &auth.Claims{
		TenantID:  sc.TenantID.String(),
		ProjectID: sc.ProjectID.String(),
	}
	claims.Subject = "user-123"
	ctx := context.WithValue(req.Context(), auth.ClaimsKey, claims)
	return req.WithContext(ctx)
}

type mockTraceService struct {
	chain     *models.PartialChain
	chains    map[uuid.UUID]*models.PartialChain
	err       error
	lastScope scope.Scope
	lastIDs   []uuid.UUID
}

var _ engine.TraceService = (*mockTraceService)(nil)

func (m *mockTraceService) TraceDownstream(ctx context.Context, sc scope.Scope, requirementID uuid.UUID) (*models.PartialChain, error) {
	m.lastScope = sc
	m.lastIDs = []uuid.UUID{requirementID}
	return m.chain, m.err
}

func (m *mockTraceService) TraceUpstream(ctx context.Context, sc scope.Scope, defectID uuid.UUID) (*models.PartialChain, error) {
	m.lastScope = sc
	m.lastIDs = []uuid.UUID{defectID}
	return m.chain, m.err
}

func (m *mockTraceService) TraceUpstreamBatch(ctx context.Context, sc scope.Scope, defectIDs []uuid.UUID) (map[uuid.UUID]*models.PartialChain, error) {
	m.lastScope = sc
	m.lastIDs = defectIDs
	return m.chains, m.err
}

type mockPropagationService struct {
	step      *models.ProcessStep
	mutations []models.FitMutation
	err       error

	lastAction   string
	lastLevelID  uuid.UUID
	lastStatus   models.FitStatus
	lastWorkshop uuid.UUID
	lastDisabled bool
}

var _ engine.PropagationService = (*mockPropagationService)(nil)

func (m *mockPropagationService) Propagate(ctx context.Context, sc scope.Scope, levelID uuid.UUID) ([]models.FitMutation, error) {
	m.lastAction = "propagate"
	m.lastLevelID = levelID
	return m.mutations, m.err
}

func (m *mockPropagationService) RecordDecision(ctx context.Context, sc scope.Scope, levelID, workshopID uuid.UUID, decision models.FitStatus) (*models.ProcessStep, []models.FitMutation, error) {
	m.lastAction = "decision"
	m.lastLevelID = levelID
	m.lastStatus = decision
	m.lastWorkshop = workshopID
	return m.step, m.mutations, m.err
}

func (m *mockPropagationService) SetOverride(ctx context.Context, sc scope.Scope, levelID uuid.UUID, status models.FitStatus) ([]models.FitMutation, error) {
	m.lastAction = "override"
	m.lastLevelID = levelID
	m.lastStatus = status
	return m.mutations, m.err
}

func (m *mockPropagationService) ClearOverride(ctx context.Context, sc scope.Scope, levelID uuid.UUID) ([]models.FitMutation, error) {
	m.lastAction = "clear_override"
	m.lastLevelID = levelID
	return m.mutations, m.err
}

func (m *mockPropagationService) SetDisabled(ctx context.Context, sc scope.Scope, levelID uuid.UUID, disabled bool) ([]models.FitMutation, error) {
	m.lastAction = "set_disabled"
	m.lastLevelID = levelID
	m.lastDisabled = disabled
	return m.mutations, m.err
}

type mockCoverageService struct {
	summary    *models.CoverageSummary
	err        error
	lastFilter models.CoverageFilter
}

var _ engine.CoverageService = (*mockCoverageService)(nil)

func (m *mockCoverageService) CoverageSummary(ctx context.Context, sc scope.Scope, filter models.CoverageFilter) (*models.CoverageSummary, error) {
	m.lastFilter = filter
	return m.summary, m.err
}

type mockImpactService struct {
	summary *models.ImpactSummary
	err     error
	lastIDs []uuid.UUID
}

var _ engine.ImpactService = (*mockImpactService)(nil)

func (m *mockImpactService) UpstreamImpact(ctx context.Context, sc scope.Scope, defectIDs []uuid.UUID) (*models.ImpactSummary, error) {
	m.lastIDs = defectIDs
	return m.summary, m.err
}
