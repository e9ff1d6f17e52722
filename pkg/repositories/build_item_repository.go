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

// BuildItemRepository provides data access for build items.
type BuildItemRepository interface {
	Create(ctx context.Context, sc scope.Scope, item *models.BuildItem) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.BuildItem, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.BuildItem, error)
}

type buildItemRepository struct{}

// NewBuildItemRepository creates a new BuildItemRepository.
func NewBuildItemRepository() BuildItemRepository {
	return &buildItemRepository{}
}

var _ BuildItemRepository = (*buildItemRepository)(nil)

const buildItemColumns = `id, tenant_id, project_id, requirement_id, title, status, created_at, updated_at`

func (r *buildItemRepository) Create(ctx context.Context, sc scope.Scope, item *models.BuildItem) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.TenantID = sc.TenantID
	item.ProjectID = sc.ProjectID
	if item.Status == "" {
		item.Status = "open"
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt

	query := `
		INSERT INTO build_items (
			id, tenant_id, project_id, requirement_id, title, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = q.Exec(ctx, query,
		item.ID, item.TenantID, item.ProjectID, item.RequirementID, item.Title, item.Status,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create build item: %w", err)
	}

	return nil
}

func (r *buildItemRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.BuildItem, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + buildItemColumns + `
		FROM build_items
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	item, err := scanBuildItem(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return item, nil
}

func (r *buildItemRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.BuildItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + buildItemColumns + `
		FROM build_items
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query build items: %w", err)
	}
	defer rows.Close()

	var items []*models.BuildItem
	for rows.Next() {
		item, err := scanBuildItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build items: %w", err)
	}

	return items, nil
}

func scanBuildItem(row pgx.Row) (*models.BuildItem, error) {
	var item models.BuildItem

	err := row.Scan(
		&item.ID, &item.TenantID, &item.ProjectID, &item.RequirementID, &item.Title, &item.Status,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan build item: %w", err)
	}

	return &item, nil
}
