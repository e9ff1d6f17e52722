// Package repositories provides scope-filtered data access for each artifact
// kind in the traceability graph. Every query carries explicit tenant and
// project predicates taken from the caller's scope argument; the context is
// used only to reach the tenant-pinned connection.
package repositories

import (
	"context"
	"fmt"

	"github.com/traceway-io/traceway-engine/pkg/database"
)

// conn returns the tenant-pinned connection from context. Repositories never
// fall back to an unpinned pool connection.
func conn(ctx context.Context) (database.Querier, error) {
	tc, ok := database.GetTenantConn(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant connection in context")
	}
	return tc.Conn, nil
}
