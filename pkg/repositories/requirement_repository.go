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

// RequirementRepository provides data access for requirements.
type RequirementRepository interface {
	Create(ctx context.Context, sc scope.Scope, req *models.Requirement) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.Requirement, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.Requirement, error)
	List(ctx context.Context, sc scope.Scope, filter models.CoverageFilter) ([]*models.Requirement, error)
	ListByProcessStep(ctx context.Context, sc scope.Scope, processStepID uuid.UUID) ([]*models.Requirement, error)
	// SetDerivedArtifact records the conversion of a requirement into a build
	// or config item.
	SetDerivedArtifact(ctx context.Context, sc scope.Scope, id uuid.UUID, derivedType models.ArtifactType, derivedID uuid.UUID) error
	SetParent(ctx context.Context, sc scope.Scope, id uuid.UUID, parentID *uuid.UUID) error
}

type requirementRepository struct{}

// NewRequirementRepository creates a new RequirementRepository.
func NewRequirementRepository() RequirementRepository {
	return &requirementRepository{}
}

var _ RequirementRepository = (*requirementRepository)(nil)

const requirementColumns = `id, tenant_id, project_id, process_step_id, parent_id, title,
	status, classification, priority, derived_type, derived_id, created_at, updated_at`

func (r *requirementRepository) Create(ctx context.Context, sc scope.Scope, req *models.Requirement) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.TenantID = sc.TenantID
	req.ProjectID = sc.ProjectID
	if req.Status == "" {
		req.Status = models.RequirementStatusDraft
	}
	if req.Classification == "" {
		req.Classification = models.FitStatusUnset
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	query := `
		INSERT INTO requirements (
			id, tenant_id, project_id, process_step_id, parent_id, title,
			status, classification, priority, derived_type, derived_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = q.Exec(ctx, query,
		req.ID, req.TenantID, req.ProjectID, req.ProcessStepID, req.ParentID, req.Title,
		req.Status, req.Classification, req.Priority, req.DerivedType, req.DerivedID,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create requirement: %w", err)
	}

	return nil
}

func (r *requirementRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.Requirement, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + requirementColumns + `
		FROM requirements
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	req, err := scanRequirement(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return req, nil
}

func (r *requirementRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.Requirement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + requirementColumns + `
		FROM requirements
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}
	defer rows.Close()

	return collectRequirements(rows)
}

func (r *requirementRepository) List(ctx context.Context, sc scope.Scope, filter models.CoverageFilter) ([]*models.Requirement, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + requirementColumns + `
		FROM requirements
		WHERE tenant_id = $1 AND project_id = $2
		  AND ($3 = '' OR classification = $3)
		  AND ($4 = '' OR priority = $4)
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, string(filter.Classification), filter.Priority)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}
	defer rows.Close()

	return collectRequirements(rows)
}

func (r *requirementRepository) ListByProcessStep(ctx context.Context, sc scope.Scope, processStepID uuid.UUID) ([]*models.Requirement, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + requirementColumns + `
		FROM requirements
		WHERE tenant_id = $1 AND project_id = $2 AND process_step_id = $3
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, processStepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements by process step: %w", err)
	}
	defer rows.Close()

	return collectRequirements(rows)
}

func (r *requirementRepository) SetDerivedArtifact(ctx context.Context, sc scope.Scope, id uuid.UUID, derivedType models.ArtifactType, derivedID uuid.UUID) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE requirements
		SET derived_type = $1, derived_id = $2, status = $3, updated_at = now()
		WHERE tenant_id = $4 AND project_id = $5 AND id = $6`

	tag, err := q.Exec(ctx, query, derivedType, derivedID, models.RequirementStatusConverted, sc.TenantID, sc.ProjectID, id)
	if err != nil {
		return fmt.Errorf("failed to set derived artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFoundInScope
	}

	return nil
}

func (r *requirementRepository) SetParent(ctx context.Context, sc scope.Scope, id uuid.UUID, parentID *uuid.UUID) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE requirements
		SET parent_id = $1, updated_at = now()
		WHERE tenant_id = $2 AND project_id = $3 AND id = $4`

	tag, err := q.Exec(ctx, query, parentID, sc.TenantID, sc.ProjectID, id)
	if err != nil {
		return fmt.Errorf("failed to set requirement parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFoundInScope
	}

	return nil
}

func scanRequirement(row pgx.Row) (*models.Requirement, error) {
	var req models.Requirement

	err := row.Scan(
		&req.ID, &req.TenantID, &req.ProjectID, &req.ProcessStepID, &req.ParentID, &req.Title,
		&req.Status, &req.Classification, &req.Priority, &req.DerivedType, &req.DerivedID,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan requirement: %w", err)
	}

	return &req, nil
}

func collectRequirements(rows pgx.Rows) ([]*models.Requirement, error) {
	var reqs []*models.Requirement
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requirements: %w", err)
	}
	return reqs, nil
}
