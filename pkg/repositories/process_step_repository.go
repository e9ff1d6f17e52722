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

// ProcessStepRepository provides data access for workshop process steps.
type ProcessStepRepository interface {
	Create(ctx context.Context, sc scope.Scope, step *models.ProcessStep) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ProcessStep, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ProcessStep, error)
	// GetOpenByProcessLevel returns the single non-superseded step for a
	// process level, or ErrNotFoundInScope when none exists.
	GetOpenByProcessLevel(ctx context.Context, sc scope.Scope, processLevelID uuid.UUID) (*models.ProcessStep, error)
	// SupersedeOpen marks the current open step for a process level as
	// superseded. A no-op when there is none.
	SupersedeOpen(ctx context.Context, sc scope.Scope, processLevelID uuid.UUID) error
}

type processStepRepository struct{}

// NewProcessStepRepository creates a new ProcessStepRepository.
func NewProcessStepRepository() ProcessStepRepository {
	return &processStepRepository{}
}

var _ ProcessStepRepository = (*processStepRepository)(nil)

const processStepColumns = `id, tenant_id, project_id, process_level_id, workshop_id,
	fit_decision, superseded, created_at, updated_at`

func (r *processStepRepository) Create(ctx context.Context, sc scope.Scope, step *models.ProcessStep) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	step.TenantID = sc.TenantID
	step.ProjectID = sc.ProjectID
	step.CreatedAt = time.Now()
	step.UpdatedAt = step.CreatedAt

	query := `
		INSERT INTO process_steps (
			id, tenant_id, project_id, process_level_id, workshop_id,
			fit_decision, superseded, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = q.Exec(ctx, query,
		step.ID, step.TenantID, step.ProjectID, step.ProcessLevelID, step.WorkshopID,
		step.FitDecision, step.Superseded, step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create process step: %w", err)
	}

	return nil
}

func (r *processStepRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ProcessStep, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + processStepColumns + `
		FROM process_steps
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	step, err := scanProcessStep(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return step, nil
}

func (r *processStepRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ProcessStep, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + processStepColumns + `
		FROM process_steps
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query process steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.ProcessStep
	for rows.Next() {
		step, err := scanProcessStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating process steps: %w", err)
	}

	return steps, nil
}

func (r *processStepRepository) GetOpenByProcessLevel(ctx context.Context, sc scope.Scope, processLevelID uuid.UUID) (*models.ProcessStep, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + processStepColumns + `
		FROM process_steps
		WHERE tenant_id = $1 AND project_id = $2 AND process_level_id = $3 AND NOT superseded`

	step, err := scanProcessStep(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, processLevelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return step, nil
}

func (r *processStepRepository) SupersedeOpen(ctx context.Context, sc scope.Scope, processLevelID uuid.UUID) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE process_steps
		SET superseded = true, updated_at = now()
		WHERE tenant_id = $1 AND project_id = $2 AND process_level_id = $3 AND NOT superseded`

	if _, err := q.Exec(ctx, query, sc.TenantID, sc.ProjectID, processLevelID); err != nil {
		return fmt.Errorf("failed to supersede process step: %w", err)
	}

	return nil
}

func scanProcessStep(row pgx.Row) (*models.ProcessStep, error) {
	var step models.ProcessStep

	err := row.Scan(
		&step.ID, &step.TenantID, &step.ProjectID, &step.ProcessLevelID, &step.WorkshopID,
		&step.FitDecision, &step.Superseded, &step.CreatedAt, &step.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan process step: %w", err)
	}

	return &step, nil
}
