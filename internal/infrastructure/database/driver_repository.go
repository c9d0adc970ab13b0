package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

// DriverRepository is the Postgres implementation of
// fleet.DriverRepository.
type DriverRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewDriverRepository(pool *pgxpool.Pool, logger *zap.Logger) *DriverRepository {
	return &DriverRepository{pool: pool, logger: logger}
}

const driverColumns = `
	id, organization_id, employee_number, name, phone, department, status,
	cdl_flag, license_expiration, cdl_expiration, medical_cert_expiration,
	created_at, updated_at`

func scanDriver(row pgx.Row) (*fleet.Driver, error) {
	var d fleet.Driver
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.EmployeeNumber, &d.Name, &d.Phone,
		&d.Department, &d.Status, &d.CDLFlag, &d.LicenseExpiration,
		&d.CDLExpiration, &d.MedicalCertExpiration, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DriverRepository) Save(ctx context.Context, driver *fleet.Driver) error {
	query := `
		INSERT INTO drivers (` + driverColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			employee_number = EXCLUDED.employee_number,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			department = EXCLUDED.department,
			status = EXCLUDED.status,
			cdl_flag = EXCLUDED.cdl_flag,
			license_expiration = EXCLUDED.license_expiration,
			cdl_expiration = EXCLUDED.cdl_expiration,
			medical_cert_expiration = EXCLUDED.medical_cert_expiration,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		driver.ID, driver.OrganizationID, driver.EmployeeNumber, driver.Name,
		driver.Phone, driver.Department, driver.Status, driver.CDLFlag,
		driver.LicenseExpiration, driver.CDLExpiration,
		driver.MedicalCertExpiration, driver.CreatedAt, driver.UpdatedAt,
	)
	if err != nil {
		return errors.NewStorageError("saving driver").WithCause(err)
	}
	return nil
}

func (r *DriverRepository) GetByID(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) (*fleet.Driver, error) {
	query := `
		SELECT ` + driverColumns + `
		FROM drivers
		WHERE id = $1 AND organization_id = $2 AND ($3 = '' OR department = $3)`

	driver, err := scanDriver(r.pool.QueryRow(ctx, query, id, filter.OrganizationID, filter.Department))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("driver")
		}
		return nil, errors.NewStorageError("querying driver").WithCause(err)
	}
	return driver, nil
}

func (r *DriverRepository) FindByScope(ctx context.Context, filter auth.ScopeFilter) ([]*fleet.Driver, error) {
	query := `
		SELECT ` + driverColumns + `
		FROM drivers
		WHERE organization_id = $1 AND ($2 = '' OR department = $2)
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, filter.OrganizationID, filter.Department)
	if err != nil {
		return nil, errors.NewStorageError("querying drivers").WithCause(err)
	}
	defer rows.Close()

	var drivers []*fleet.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, errors.NewStorageError("scanning driver row").WithCause(err)
		}
		drivers = append(drivers, driver)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating driver rows").WithCause(err)
	}
	return drivers, nil
}

func (r *DriverRepository) Delete(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) error {
	query := `
		DELETE FROM drivers
		WHERE id = $1 AND organization_id = $2 AND ($3 = '' OR department = $3)`

	tag, err := r.pool.Exec(ctx, query, id, filter.OrganizationID, filter.Department)
	if err != nil {
		return errors.NewStorageError("deleting driver").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("driver")
	}
	return nil
}

// DriversByScope satisfies the compliance engine's entity source.
func (r *DriverRepository) DriversByScope(ctx context.Context, filter auth.ScopeFilter) ([]*fleet.Driver, error) {
	return r.FindByScope(ctx, filter)
}
