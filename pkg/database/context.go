package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of a pgx connection the repositories use. Both
// *pgxpool.Conn and *pgxpool.Pool satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type contextKey string

// TenantConnKey is the context key for the tenant-pinned database connection.
const TenantConnKey contextKey = "tenantConn"

// GetTenantConn retrieves the tenant-pinned database connection from context.
// Returns nil and false if not present.
func GetTenantConn(ctx context.Context) (*TenantConn, bool) {
	conn, ok := ctx.Value(TenantConnKey).(*TenantConn)
	return conn, ok
}

// SetTenantConn stores the tenant-pinned database connection in context. The
// context carries only the connection; tenant identity itself always travels
// as an explicit scope parameter.
func SetTenantConn(ctx context.Context, conn *TenantConn) context.Context {
	return context.WithValue(ctx, TenantConnKey, conn)
}
