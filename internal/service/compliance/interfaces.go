package compliance

import (
	"context"

	"github.com/google/uuid"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

// EntitySource loads monitored entities constrained by a scope filter. The
// persistence collaborator implements this; evaluation always passes an
// organization-wide filter.
type EntitySource interface {
	VehiclesByScope(ctx context.Context, filter auth.ScopeFilter) ([]*fleet.Vehicle, error)
	DriversByScope(ctx context.Context, filter auth.ScopeFilter) ([]*fleet.Driver, error)
}

// OrganizationSource enumerates tenants for scheduled evaluation runs.
type OrganizationSource interface {
	ActiveOrganizationIDs(ctx context.Context) ([]uuid.UUID, error)
}

// AuditRecorder is the slice of the audit recorder rule mutations need.
type AuditRecorder interface {
	RecordCreate(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, after map[string]any, actorID uuid.UUID, ipAddress string)
	RecordUpdate(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, before, after map[string]any, actorID uuid.UUID, ipAddress string)
}
