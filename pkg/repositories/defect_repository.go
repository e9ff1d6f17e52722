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

// DefectRepository provides data access for defects.
type DefectRepository interface {
	Create(ctx context.Context, sc scope.Scope, defect *models.Defect) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.Defect, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.Defect, error)
	List(ctx context.Context, sc scope.Scope) ([]*models.Defect, error)
	// ListByExecutions is the batch variant: one query for any number of
	// executions, grouped by execution id.
	ListByExecutions(ctx context.Context, sc scope.Scope, executionIDs []uuid.UUID) (map[uuid.UUID][]*models.Defect, error)
}

type defectRepository struct{}

// NewDefectRepository creates a new DefectRepository.
func NewDefectRepository() DefectRepository {
	return &defectRepository{}
}

var _ DefectRepository = (*defectRepository)(nil)

const defectColumns = `id, tenant_id, project_id, test_execution_id, title, severity, status, created_at, updated_at`

func (r *defectRepository) Create(ctx context.Context, sc scope.Scope, defect *models.Defect) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if defect.ID == uuid.Nil {
		defect.ID = uuid.New()
	}
	defect.TenantID = sc.TenantID
	defect.ProjectID = sc.ProjectID
	if defect.Severity == "" {
		defect.Severity = models.DefectSeverityMedium
	}
	if defect.Status == "" {
		defect.Status = "open"
	}
	defect.CreatedAt = time.Now()
	defect.UpdatedAt = defect.CreatedAt

	query := `
		INSERT INTO defects (
			id, tenant_id, project_id, test_execution_id, title, severity, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = q.Exec(ctx, query,
		defect.ID, defect.TenantID, defect.ProjectID, defect.TestExecutionID,
		defect.Title, defect.Severity, defect.Status, defect.CreatedAt, defect.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create defect: %w", err)
	}

	return nil
}

func (r *defectRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.Defect, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + defectColumns + `
		FROM defects
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	defect, err := scanDefect(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return defect, nil
}

func (r *defectRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.Defect, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + defectColumns + `
		FROM defects
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query defects: %w", err)
	}
	defer rows.Close()

	return collectDefects(rows)
}

func (r *defectRepository) List(ctx context.Context, sc scope.Scope) ([]*models.Defect, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + defectColumns + `
		FROM defects
		WHERE tenant_id = $1 AND project_id = $2
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query defects: %w", err)
	}
	defer rows.Close()

	return collectDefects(rows)
}

func (r *defectRepository) ListByExecutions(ctx context.Context, sc scope.Scope, executionIDs []uuid.UUID) (map[uuid.UUID][]*models.Defect, error) {
	result := make(map[uuid.UUID][]*models.Defect)
	if len(executionIDs) == 0 {
		return result, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + defectColumns + `
		FROM defects
		WHERE tenant_id = $1 AND project_id = $2 AND test_execution_id = ANY($3)
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, executionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query defects by executions: %w", err)
	}
	defer rows.Close()

	defects, err := collectDefects(rows)
	if err != nil {
		return nil, err
	}
	for _, d := range defects {
		if d.TestExecutionID != nil {
			result[*d.TestExecutionID] = append(result[*d.TestExecutionID], d)
		}
	}

	return result, nil
}

func scanDefect(row pgx.Row) (*models.Defect, error) {
	var defect models.Defect

	err := row.Scan(
		&defect.ID, &defect.TenantID, &defect.ProjectID, &defect.TestExecutionID,
		&defect.Title, &defect.Severity, &defect.Status, &defect.CreatedAt, &defect.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan defect: %w", err)
	}

	return &defect, nil
}

func collectDefects(rows pgx.Rows) ([]*models.Defect, error) {
	var defects []*models.Defect
	for rows.Next() {
		defect, err := scanDefect(rows)
		if err != nil {
			return nil, err
		}
		defects = append(defects, defect)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating defects: %w", err)
	}
	return defects, nil
}
