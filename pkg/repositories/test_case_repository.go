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

// TestCaseRepository provides data access for test cases.
type TestCaseRepository interface {
	Create(ctx context.Context, sc scope.Scope, tc *models.TestCase) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.TestCase, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.TestCase, error)
}

type testCaseRepository struct{}

// NewTestCaseRepository creates a new TestCaseRepository.
func NewTestCaseRepository() TestCaseRepository {
	return &testCaseRepository{}
}

var _ TestCaseRepository = (*testCaseRepository)(nil)

const testCaseColumns = `id, tenant_id, project_id, title, status, created_at, updated_at`

func (r *testCaseRepository) Create(ctx context.Context, sc scope.Scope, tc *models.TestCase) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if tc.ID == uuid.Nil {
		tc.ID = uuid.New()
	}
	tc.TenantID = sc.TenantID
	tc.ProjectID = sc.ProjectID
	if tc.Status == "" {
		tc.Status = "draft"
	}
	tc.CreatedAt = time.Now()
	tc.UpdatedAt = tc.CreatedAt

	query := `
		INSERT INTO test_cases (
			id, tenant_id, project_id, title, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = q.Exec(ctx, query,
		tc.ID, tc.TenantID, tc.ProjectID, tc.Title, tc.Status, tc.CreatedAt, tc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create test case: %w", err)
	}

	return nil
}

func (r *testCaseRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.TestCase, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + testCaseColumns + `
		FROM test_cases
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	tc, err := scanTestCase(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return tc, nil
}

func (r *testCaseRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.TestCase, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + testCaseColumns + `
		FROM test_cases
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query test cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test cases: %w", err)
	}

	return cases, nil
}

func scanTestCase(row pgx.Row) (*models.TestCase, error) {
	var tc models.TestCase

	err := row.Scan(
		&tc.ID, &tc.TenantID, &tc.ProjectID, &tc.Title, &tc.Status, &tc.CreatedAt, &tc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan test case: %w", err)
	}

	return &tc, nil
}
