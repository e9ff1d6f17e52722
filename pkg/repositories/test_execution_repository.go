package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/traceway-io/traceway-engine/pkg/apperrors"
	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// TestExecutionRepository provides data access for test executions.
type TestExecutionRepository interface {
	Create(ctx context.Context, sc scope.Scope, exec *models.TestExecution) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.TestExecution, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.TestExecution, error)
	ListByTestCase(ctx context.Context, sc scope.Scope, testCaseID uuid.UUID) ([]*models.TestExecution, error)
	// ListByTestCases is the batch variant: one query for any number of test
	// cases, grouped by test case id.
	ListByTestCases(ctx context.Context, sc scope.Scope, testCaseIDs []uuid.UUID) (map[uuid.UUID][]*models.TestExecution, error)
}

type testExecutionRepository struct{}

// NewTestExecutionRepository creates a new TestExecutionRepository.
func NewTestExecutionRepository() TestExecutionRepository {
	return &testExecutionRepository{}
}

var _ TestExecutionRepository = (*testExecutionRepository)(nil)

const testExecutionColumns = `id, tenant_id, project_id, test_case_id, result, executed_at, created_at`

func (r *testExecutionRepository) Create(ctx context.Context, sc scope.Scope, exec *models.TestExecution) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	exec.TenantID = sc.TenantID
	exec.ProjectID = sc.ProjectID
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now()
	}
	exec.CreatedAt = time.Now()

	query := `
		INSERT INTO test_executions (
			id, tenant_id, project_id, test_case_id, result, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = q.Exec(ctx, query,
		exec.ID, exec.TenantID, exec.ProjectID, exec.TestCaseID, exec.Result,
		exec.ExecutedAt, exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create test execution: %w", err)
	}

	return nil
}

func (r *testExecutionRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.TestExecution, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + testExecutionColumns + `
		FROM test_executions
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	exec, err := scanTestExecution(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return exec, nil
}

func (r *testExecutionRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.TestExecution, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + testExecutionColumns + `
		FROM test_executions
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query test executions: %w", err)
	}
	defer rows.Close()

	return collectTestExecutions(rows)
}

func (r *testExecutionRepository) ListByTestCase(ctx context.Context, sc scope.Scope, testCaseID uuid.UUID) ([]*models.TestExecution, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + testExecutionColumns + `
		FROM test_executions
		WHERE tenant_id = $1 AND project_id = $2 AND test_case_id = $3
		ORDER BY executed_at DESC`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query test executions by test case: %w", err)
	}
	defer rows.Close()

	return collectTestExecutions(rows)
}

func (r *testExecutionRepository) ListByTestCases(ctx context.Context, sc scope.Scope, testCaseIDs []uuid.UUID) (map[uuid.UUID][]*models.TestExecution, error) {
	result := make(map[uuid.UUID][]*models.TestExecution)
	if len(testCaseIDs) == 0 {
		return result, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + testExecutionColumns + `
		FROM test_executions
		WHERE tenant_id = $1 AND project_id = $2 AND test_case_id = ANY($3)
		ORDER BY executed_at DESC`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, testCaseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query test executions by test cases: %w", err)
	}
	defer rows.Close()

	execs, err := collectTestExecutions(rows)
	if err != nil {
		return nil, err
	}
	for _, exec := range execs {
		result[exec.TestCaseID] = append(result[exec.TestCaseID], exec)
	}

	return result, nil
}

func scanTestExecution(row pgx.Row) (*models.TestExecution, error) {
	var exec models.TestExecution

	err := row.Scan(
		&exec.ID, &exec.TenantID, &exec.ProjectID, &exec.TestCaseID, &exec.Result,
		&exec.ExecutedAt, &exec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan test execution: %w", err)
	}

	return &exec, nil
}

func collectTestExecutions(rows pgx.Rows) ([]*models.TestExecution, error) {
	var execs []*models.TestExecution
	for rows.Next() {
		exec, err := scanTestExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test executions: %w", err)
	}
	return execs, nil
}
