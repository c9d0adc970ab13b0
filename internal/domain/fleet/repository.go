package fleet

import (
	"context"

	"github.com/google/uuid"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
)

// VehicleRepository persists vehicles. Every read and write takes the
// caller's scope filter; a row outside the scope behaves exactly like a
// row that does not exist.
type VehicleRepository interface {
	Save(ctx context.Context, vehicle *Vehicle) error
	GetByID(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) (*Vehicle, error)
	FindByScope(ctx context.Context, filter auth.ScopeFilter) ([]*Vehicle, error)
	Delete(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) error
}

// DriverRepository persists drivers under the same scoping contract as
// VehicleRepository.
type DriverRepository interface {
	Save(ctx context.Context, driver *Driver) error
	GetByID(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) (*Driver, error)
	FindByScope(ctx context.Context, filter auth.ScopeFilter) ([]*Driver, error)
	Delete(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) error
}

// DepartmentRepository looks up departments for scope resolution.
type DepartmentRepository interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Department, error)
	FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*Department, error)
}
