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

// ConfigItemRepository provides data access for config items.
type ConfigItemRepository interface {
	Create(ctx context.Context, sc scope.Scope, item *models.ConfigItem) error
	GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ConfigItem, error)
	GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ConfigItem, error)
}

type configItemRepository struct{}

// NewConfigItemRepository creates a new ConfigItemRepository.
func NewConfigItemRepository() ConfigItemRepository {
	return &configItemRepository{}
}

var _ ConfigItemRepository = (*configItemRepository)(nil)

const configItemColumns = `id, tenant_id, project_id, requirement_id, title, status, created_at, updated_at`

func (r *configItemRepository) Create(ctx context.Context, sc scope.Scope, item *models.ConfigItem) error {
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
		INSERT INTO config_items (
			id, tenant_id, project_id, requirement_id, title, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = q.Exec(ctx, query,
		item.ID, item.TenantID, item.ProjectID, item.RequirementID, item.Title, item.Status,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create config item: %w", err)
	}

	return nil
}

func (r *configItemRepository) GetByID(ctx context.Context, sc scope.Scope, id uuid.UUID) (*models.ConfigItem, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + configItemColumns + `
		FROM config_items
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	item, err := scanConfigItem(q.QueryRow(ctx, query, sc.TenantID, sc.ProjectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFoundInScope
		}
		return nil, err
	}

	return item, nil
}

func (r *configItemRepository) GetByIDs(ctx context.Context, sc scope.Scope, ids []uuid.UUID) ([]*models.ConfigItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + configItemColumns + `
		FROM config_items
		WHERE tenant_id = $1 AND project_id = $2 AND id = ANY($3)`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query config items: %w", err)
	}
	defer rows.Close()

	var items []*models.ConfigItem
	for rows.Next() {
		item, err := scanConfigItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating config items: %w", err)
	}

	return items, nil
}

func scanConfigItem(row pgx.Row) (*models.ConfigItem, error) {
	var item models.ConfigItem

	err := row.Scan(
		&item.ID, &item.TenantID, &item.ProjectID, &item.RequirementID, &item.Title, &item.Status,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan config item: %w", err)
	}

	return &item, nil
}
