package database

import (
	"context"

	"github.com/google/uuid"
)

// TenantConn wraps a connection pinned to one tenant and ensures cleanup.
// The connection has app.current_tenant_id and app.current_project_id set so
// row-level security policies apply. RLS is defense in depth: every query the
// repositories issue still carries explicit tenant/project predicates from the
// caller's scope argument.
type TenantConn struct {
	Conn Querier
}

// Close resets tenant context and releases the connection to the pool.
// This MUST be called to prevent tenant context from leaking to the next
// request.
func (c *TenantConn) Close() {
	releaser, ok := c.Conn.(interface{ Release() })
	if !ok {
		return
	}
	_, _ = c.Conn.Exec(context.Background(), "RESET app.current_tenant_id")
	_, _ = c.Conn.Exec(context.Background(), "RESET app.current_project_id")
	releaser.Release()
}

// WithTenant acquires a connection and sets the tenant context for RLS.
// The returned TenantConn MUST be closed with defer conn.Close().
func (db *DB) WithTenant(ctx context.Context, tenantID, projectID uuid.UUID) (*TenantConn, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_tenant_id', $1, false), set_config('app.current_project_id', $2, false)",
		tenantID.String(), projectID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TenantConn{Conn: conn}, nil
}
