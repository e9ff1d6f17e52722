package models

import (
	"time"

	"github.com/google/uuid"
)

// Test execution results.
const (
	ExecutionResultPassed  = "passed"
	ExecutionResultFailed  = "failed"
	ExecutionResultBlocked = "blocked"
)

// Defect severities.
const (
	DefectSeverityLow      = "low"
	DefectSeverityMedium   = "medium"
	DefectSeverityHigh     = "high"
	DefectSeverityCritical = "critical"
)

// TestCase verifies one or more upstream artifacts. Its upstream links are
// trace links with owner_type "test_case"; a test case may carry parallel links
// to different artifact kinds at once.
type TestCase struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref implements Node.
func (tc *TestCase) Ref() NodeRef {
	return NodeRef{Type: ArtifactTestCase, ID: tc.ID, Label: tc.Title}
}

// TestExecution is one run of a test case.
type TestExecution struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ProjectID  uuid.UUID `json:"project_id"`
	TestCaseID uuid.UUID `json:"test_case_id"`
	Result     string    `json:"result"`
	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ref implements Node.
func (te *TestExecution) Ref() NodeRef {
	return NodeRef{Type: ArtifactTestExecution, ID: te.ID}
}

// Defect is logged against a test execution. TestExecutionID is nullable: a
// defect with no execution is the terminal node of its own upstream chain, not
// an error case.
type Defect struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	ProjectID       uuid.UUID  `json:"project_id"`
	TestExecutionID *uuid.UUID `json:"test_execution_id,omitempty"`
	Title           string     `json:"title"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Ref implements Node.
func (d *Defect) Ref() NodeRef {
	return NodeRef{Type: ArtifactDefect, ID: d.ID, Label: d.Title}
}
