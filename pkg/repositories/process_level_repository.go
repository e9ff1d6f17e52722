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

// ProcessLevelRepository provides data access for process hierarchy nodes.
type ProcessLevelRepository interface {
	Create(ctx context.Context, sc scope.Scope, node *models.ProcessLevel) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ProcessLevel, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ProcessLevel, error)
	ListChildren(ctx context.Context, sc scope.Scope, parentID uuid.UUID) ([]*models.ProcessLevel, error)
	// UpdateFitStatus writes a computed fit status with an optimistic version
	// check. Returns ErrConcurrentUpdate when the version no longer matches.
	UpdateFitStatus(ctx context.Context, sc scope.Scope, id uuid.UUID, version int, status models.FitStatus) error
	// SetOverride pins (or unpins) a node's fit status against propagation.
	SetOverride(ctx context.Context, sc scope.Scope, id uuid.UUID, version int, overridden bool, status models.FitStatus) error
	SetDisabled(ctx context.Context, sc scope.Scope, id uuid.UUID, disabled bool) error
}

type processLevelRepository struct{}

// NewProcessLevelRepository creates a new ProcessLevelRepository.
func NewProcessLevelRepository() ProcessLevelRepository {
	return &processLevelRepository{}
}

var _ ProcessLevelRepository = (*processLevelRepository)(nil)

const processLevelColumns = `id, tenant_id, project_id, level, parent_id, name,
	fit_status, fit_overridden, sort_order, disabled, version, created_at, updated_at`

func (r *processLevelRepository) Create(ctx context.Context, sc scope.Scope, node *models.ProcessLevel) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	node.TenantID = sc.TenantID
	node.ProjectID = sc.ProjectID
	if node.FitStatus == "" {
		node.FitStatus = models.FitStatusUnset
	}
	if node.Version == 0 {
		node.Version = 1
	}
	node.CreatedAt = time.Now()
	node.UpdatedAt = node.CreatedAt

	query := `
		INSERT INTO process_levels (
			id, tenant_id, project_id, level, parent_id, name,
			fit_status, fit_overridden, sort_order, disabled, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = q.Exec(ctx, query,
		node.ID, node.TenantID, node.ProjectID, node.Level, node.ParentID, node.Name,
		node.FitStatus, node.FitOverridden, node.SortOrder, node.Disabled, node.Version,
		node.CreatedAt, node.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create process level: %w", err)
	}

	return nil
}

func (r *processLevelRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ProcessLevel, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + processLevelColumns + `
		FROM process_levels
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	node, err := scanProcessLevel(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return node, nil
}

func (r *processLevelRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ProcessLevel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + processLevelColumns + `
		FROM process_levels
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query process levels: %w", err)
	}
	defer rows.Close()

	return collectProcessLevels(rows)
}

func (r *processLevelRepository) ListChildren(ctx context.Context, sc scope.Scope, parentID uuid.UUID) ([]*models.ProcessLevel, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + processLevelColumns + `
		FROM process_levels
		WHERE tenant_id = $1 AND project_id = $2 AND parent_id = $3
		ORDER BY sort_order, name`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query child process levels: %w", err)
	}
	defer rows.Close()

	return collectProcessLevels(rows)
}

func (r *processLevelRepository) UpdateFitStatus(ctx context.Context, sc scope.Scope, id uuid.UUID, version int, status models.FitStatus) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE process_levels
		SET fit_status = $1, version = version + 1, updated_at = now()
		WHERE tenant_id = $2 AND project_id = $3 AND id = $4 AND version = $5`

	tag, err := q.Exec(ctx, query, status, sc.TenantID, sc.ProjectID, id, version)
	if err != nil {
		return fmt.Errorf("failed to update fit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConcurrentUpdate
	}

	return nil
}

func (r *processLevelRepository) SetOverride(ctx context.Context, sc scope.Scope, id uuid.UUID, version int, overridden bool, status models.FitStatus) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE process_levels
		SET fit_overridden = $1, fit_status = $2, version = version + 1, updated_at = now()
		WHERE tenant_id = $3 AND project_id = $4 AND id = $5 AND version = $6`

	tag, err := q.Exec(ctx, query, overridden, status, sc.TenantID, sc.ProjectID, id, version)
	if err != nil {
		return fmt.Errorf("failed to set fit override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConcurrentUpdate
	}

	return nil
}

func (r *processLevelRepository) SetDisabled(ctx context.Context, sc scope.Scope, id uuid.UUID, disabled bool) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE process_levels
		SET disabled = $1, updated_at = now()
		WHERE tenant_id = $2 AND project_id = $3 AND id = $4`

	tag, err := q.Exec(ctx, query, disabled, sc.TenantID, sc.ProjectID, id)
	if err != nil {
		return fmt.Errorf("failed to set disabled flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFoundInScope
	}

	return nil
}

func scanProcessLevel(row pgx.Row) (*models.ProcessLevel, error) {
	var node models.ProcessLevel

	err := row.Scan(
		&node.ID, &node.TenantID, &node.ProjectID, &node.Level, &node.ParentID, &node.Name,
		&node.FitStatus, &node.FitOverridden, &node.SortOrder, &node.Disabled, &node.Version,
		&node.CreatedAt, &node.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan process level: %w", err)
	}

	return &node, nil
}

func collectProcessLevels(rows pgx.Rows) ([]*models.ProcessLevel, error) {
	var nodes []*models.ProcessLevel
	for rows.Next() {
		node, err := scanProcessLevel(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating process levels: %w", err)
	}
	return nodes, nil
}
