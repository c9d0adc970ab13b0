package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

// OrganizationRepository enumerates tenants and resolves departments. It
// backs both the scheduler's tenant listing and the scope resolver's
// department lookup.
type OrganizationRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewOrganizationRepository(pool *pgxpool.Pool, logger *zap.Logger) *OrganizationRepository {
	return &OrganizationRepository{pool: pool, logger: logger}
}

// ActiveOrganizationIDs lists tenants eligible for scheduled evaluation.
func (r *OrganizationRepository) ActiveOrganizationIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM organizations WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, errors.NewStorageError("querying organizations").WithCause(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewStorageError("scanning organization row").WithCause(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating organization rows").WithCause(err)
	}
	return ids, nil
}

// DepartmentCode resolves a department id to its canonical code within
// the organization. Satisfies the scope resolver's lookup.
func (r *OrganizationRepository) DepartmentCode(ctx context.Context, orgID, departmentID uuid.UUID) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, `
		SELECT code FROM departments WHERE id = $1 AND organization_id = $2`,
		departmentID, orgID).Scan(&code)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", errors.NewNotFoundError("department")
		}
		return "", errors.NewStorageError("querying department").WithCause(err)
	}
	return code, nil
}

// GetByID returns one department within its organization.
func (r *OrganizationRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*fleet.Department, error) {
	var d fleet.Department
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, code, created_at
		FROM departments WHERE id = $1 AND organization_id = $2`,
		id, orgID).Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Code, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("department")
		}
		return nil, errors.NewStorageError("querying department").WithCause(err)
	}
	return &d, nil
}

// FindByOrganization lists an organization's departments.
func (r *OrganizationRepository) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*fleet.Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, code, created_at
		FROM departments WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, errors.NewStorageError("querying departments").WithCause(err)
	}
	defer rows.Close()

	var departments []*fleet.Department
	for rows.Next() {
		var d fleet.Department
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Code, &d.CreatedAt); err != nil {
			return nil, errors.NewStorageError("scanning department row").WithCause(err)
		}
		departments = append(departments, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating department rows").WithCause(err)
	}
	return departments, nil
}
