package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
)

func TestCoverageHandler_Summary_Success(t *testing.T) {
	sc := testScope()
	uncovered := uuid.New()
	coverage := &mockCoverageService{
		summary: &models.CoverageSummary{
			Total:        3,
			Covered:      2,
			Uncovered:    1,
			UncoveredIDs: []uuid.UUID{uncovered},
			BrokenAtCounts: map[string]int{
				models.HopDerivedTestCase: 1,
			},
		},
	}
	handler := NewCoverageHandler(coverage, zap.NewNop())

	req := authedRequest(http.MethodGet, "/coverage", sc, nil)
	rec := httptest.NewRecorder()

	handler.Summary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.CoverageSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Total != 3 || resp.Covered != 2 {
		t.Errorf("expected 2/3 covered, got %d/%d", resp.Covered, resp.Total)
	}
	if resp.BrokenAtCounts[models.HopDerivedTestCase] != 1 {
		t.Errorf("expected broken-at histogram in response, got %+v", resp.BrokenAtCounts)
	}
}

func TestCoverageHandler_Summary_PassesFilter(t *testing.T) {
	sc := testScope()
	coverage := &mockCoverageService{summary: &models.CoverageSummary{}}
	handler := NewCoverageHandler(coverage, zap.NewNop())

	req := authedRequest(http.MethodGet, "/coverage?classification=gap&priority=high", sc, nil)
	rec := httptest.NewRecorder()

	handler.Summary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if coverage.lastFilter.Classification != models.FitStatusGap {
		t.Errorf("expected classification gap, got %q", coverage.lastFilter.Classification)
	}
	if coverage.lastFilter.Priority != "high" {
		t.Errorf("expected priority high, got %q", coverage.lastFilter.Priority)
	}
}

func TestCoverageHandler_Summary_InvalidClassification(t *testing.T) {
	sc := testScope()
	handler := NewCoverageHandler(&mockCoverageService{}, zap.NewNop())

	req := authedRequest(http.MethodGet, "/coverage?classification=bogus", sc, nil)
	rec := httptest.NewRecorder()

	handler.Summary(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestCoverageHandler_Summary_CycleDetected(t *testing.T) {
	sc := testScope()
	coverage := &mockCoverageService{err: apperrors.ErrCycleDetected}
	handler := NewCoverageHandler(coverage, zap.NewNop())

	req := authedRequest(http.MethodGet, "/coverage", sc, nil)
	rec := httptest.NewRecorder()

	handler.Summary(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["error"] != "cycle_detected" {
		t.Errorf("expected error 'cycle_detected', got %q", resp["error"])
	}
}
