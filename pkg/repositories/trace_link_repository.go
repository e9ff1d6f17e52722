package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/traceway-io/traceway-engine/pkg/models"
	"github.com/traceway-io/traceway-engine/pkg/scope"
)

// TraceLinkRepository provides data access for polymorphic trace links.
type TraceLinkRepository interface {
	Create(ctx context.Context, sc scope.Scope, link *models.TraceLink) error
	Delete(ctx context.Context, sc scope.Scope, id uuid.UUID) error
	// ListByOwners returns the links owned by any number of owners of the same
	// type in one query, grouped by owner id.
	ListByOwners(ctx context.Context, sc scope.Scope, ownerType models.ArtifactType, ownerIDs []uuid.UUID) (map[uuid.UUID][]*models.TraceLink, error)
	// ListByLinked returns all links pointing at one artifact (reverse lookup).
	ListByLinked(ctx context.Context, sc scope.Scope, linkedType models.ArtifactType, linkedID uuid.UUID) ([]*models.TraceLink, error)
}

type traceLinkRepository struct{}

// NewTraceLinkRepository creates a new TraceLinkRepository.
func NewTraceLinkRepository() TraceLinkRepository {
	return &traceLinkRepository{}
}

var _ TraceLinkRepository = (*traceLinkRepository)(nil)

const traceLinkColumns = `id, tenant_id, project_id, owner_type, owner_id, linked_type, linked_id, created_at`

func (r *traceLinkRepository) Create(ctx context.Context, sc scope.Scope, link *models.TraceLink) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.TenantID = sc.TenantID
	link.ProjectID = sc.ProjectID
	link.CreatedAt = time.Now()

	query := `
		INSERT INTO trace_links (
			id, tenant_id, project_id, owner_type, owner_id, linked_type, linked_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, owner_type, owner_id, linked_type, linked_id) DO NOTHING`

	_, err = q.Exec(ctx, query,
		link.ID, link.TenantID, link.ProjectID, link.OwnerType, link.OwnerID,
		link.LinkedType, link.LinkedID, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trace link: %w", err)
	}

	return nil
}

func (r *traceLinkRepository) Delete(ctx context.Context, sc scope.Scope, id uuid.UUID) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}

	query := `DELETE FROM trace_links WHERE tenant_id = $1 AND project_id = $2 AND id = $3`

	if _, err := q.Exec(ctx, query, sc.TenantID, sc.ProjectID, id); err != nil {
		return fmt.Errorf("failed to delete trace link: %w", err)
	}

	return nil
}

func (r *traceLinkRepository) ListByOwners(ctx context.Context, sc scope.Scope, ownerType models.ArtifactType, ownerIDs []uuid.UUID) (map[uuid.UUID][]*models.TraceLink, error) {
	result := make(map[uuid.UUID][]*models.TraceLink)
	if len(ownerIDs) == 0 {
		return result, nil
	}
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + traceLinkColumns + `
		FROM trace_links
		WHERE tenant_id = $1 AND project_id = $2 AND owner_type = $3 AND owner_id = ANY($4)
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, ownerType, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace links by owners: %w", err)
	}
	defer rows.Close()

	links, err := collectTraceLinks(rows)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		result[link.OwnerID] = append(result[link.OwnerID], link)
	}

	return result, nil
}

func (r *traceLinkRepository) ListByLinked(ctx context.Context, sc scope.Scope, linkedType models.ArtifactType, linkedID uuid.UUID) ([]*models.TraceLink, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + traceLinkColumns + `
		FROM trace_links
		WHERE tenant_id = $1 AND project_id = $2 AND linked_type = $3 AND linked_id = $4
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, sc.TenantID, sc.ProjectID, linkedType, linkedID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace links by linked artifact: %w", err)
	}
	defer rows.Close()

	return collectTraceLinks(rows)
}

func scanTraceLink(row pgx.Row) (*models.TraceLink, error) {
	var link models.TraceLink

	err := row.Scan(
		&link.ID, &link.TenantID, &link.ProjectID, &link.OwnerType, &link.OwnerID,
		&link.LinkedType, &link.LinkedID, &link.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan trace link: %w", err)
	}

	return &link, nil
}

func collectTraceLinks(rows pgx.Rows) ([]*models.TraceLink, error) {
	var links []*models.TraceLink
	for rows.Next() {
		link, err := scanTraceLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trace links: %w", err)
	}
	return links, nil
}
