// Package aggregate implements the cross-tenant read fan-out: one guardian,
// every school database probed, results merged.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/models"
)

// ErrUnknownGuardian is returned when the guardian id cannot be resolved in
// the system database. It is the only fatal error a fan-out produces.
var ErrUnknownGuardian = errors.New("unknown guardian")

// GuardianFinder resolves guardian identities in the system database.
// Implementations return (nil, nil) when the id is unknown.
type GuardianFinder interface {
	GuardianByID(ctx context.Context, id int64) (*models.Guardian, error)
}

// SchoolLister enumerates all tenants known to the system database, in its
// stable listing order.
type SchoolLister interface {
	Schools(ctx context.Context) ([]models.School, error)
}

// Query runs against a single tenant and returns that tenant's records,
// tagged with the school's id and name. Opening and releasing the tenant
// handle is the query's responsibility and must be scoped to the call.
type Query[T any] func(ctx context.Context, school models.School) ([]T, error)

// AcrossTenants resolves the guardian, then probes every known tenant with
// query and merges the results. No guardian-to-tenant index exists;
// membership is discovered by probing each school. A tenant that cannot be
// opened or queried contributes nothing and is skipped: one bad tenant must
// never blank out a guardian's whole view. Callers order the merged slice
// themselves.
func AcrossTenants[T any](ctx context.Context, guardians GuardianFinder, schools SchoolLister, guardianID int64, query Query[T], logger *zap.Logger) ([]T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	g, err := guardians.GuardianByID(ctx, guardianID)
	if err != nil {
		return nil, fmt.Errorf("resolve guardian %d: %w", guardianID, err)
	}
	if g == nil {
		return nil, fmt.Errorf("guardian %d: %w", guardianID, ErrUnknownGuardian)
	}

	list, err := schools.Schools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}

	var merged []T
	for _, school := range list {
		records, err := query(ctx, school)
		if err != nil {
			// Treated as "guardian has no presence there".
			logger.Debug("tenant probe skipped",
				zap.Int64("school_id", school.ID),
				zap.Int64("guardian_id", guardianID),
				zap.Error(err),
			)
			continue
		}
		merged = append(merged, records...)
	}
	return merged, nil
}
