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

// VehicleRepository is the Postgres implementation of
// fleet.VehicleRepository. Scope filtering happens in SQL so an
// out-of-scope row is indistinguishable from a missing one.
type VehicleRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewVehicleRepository(pool *pgxpool.Pool, logger *zap.Logger) *VehicleRepository {
	return &VehicleRepository{pool: pool, logger: logger}
}

const vehicleColumns = `
	id, organization_id, fleet_number, vin, plate_number, year, make, model,
	department, status, odometer, in_service_date, replacement_target_year,
	replacement_cost_estimate, last_dot_date, insurance_expiration,
	registration_expiration, created_at, updated_at`

func scanVehicle(row pgx.Row) (*fleet.Vehicle, error) {
	var v fleet.Vehicle
	err := row.Scan(
		&v.ID, &v.OrganizationID, &v.FleetNumber, &v.VIN, &v.PlateNumber,
		&v.Year, &v.Make, &v.Model, &v.Department, &v.Status, &v.Odometer,
		&v.InServiceDate, &v.ReplacementTargetYear, &v.ReplacementCostEstimate,
		&v.LastDOTDate, &v.InsuranceExpiration, &v.RegistrationExpiration,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepository) Save(ctx context.Context, vehicle *fleet.Vehicle) error {
	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			fleet_number = EXCLUDED.fleet_number,
			vin = EXCLUDED.vin,
			plate_number = EXCLUDED.plate_number,
			year = EXCLUDED.year,
			make = EXCLUDED.make,
			model = EXCLUDED.model,
			department = EXCLUDED.department,
			status = EXCLUDED.status,
			odometer = EXCLUDED.odometer,
			in_service_date = EXCLUDED.in_service_date,
			replacement_target_year = EXCLUDED.replacement_target_year,
			replacement_cost_estimate = EXCLUDED.replacement_cost_estimate,
			last_dot_date = EXCLUDED.last_dot_date,
			insurance_expiration = EXCLUDED.insurance_expiration,
			registration_expiration = EXCLUDED.registration_expiration,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		vehicle.ID, vehicle.OrganizationID, vehicle.FleetNumber, vehicle.VIN,
		vehicle.PlateNumber, vehicle.Year, vehicle.Make, vehicle.Model,
		vehicle.Department, vehicle.Status, vehicle.Odometer,
		vehicle.InServiceDate, vehicle.ReplacementTargetYear,
		vehicle.ReplacementCostEstimate, vehicle.LastDOTDate,
		vehicle.InsuranceExpiration, vehicle.RegistrationExpiration,
		vehicle.CreatedAt, vehicle.UpdatedAt,
	)
	if err != nil {
		return errors.NewStorageError("saving vehicle").WithCause(err)
	}
	return nil
}

func (r *VehicleRepository) GetByID(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) (*fleet.Vehicle, error) {
	query := `
		SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE id = $1 AND organization_id = $2 AND ($3 = '' OR department = $3)`

	vehicle, err := scanVehicle(r.pool.QueryRow(ctx, query, id, filter.OrganizationID, filter.Department))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("vehicle")
		}
		return nil, errors.NewStorageError("querying vehicle").WithCause(err)
	}
	return vehicle, nil
}

func (r *VehicleRepository) FindByScope(ctx context.Context, filter auth.ScopeFilter) ([]*fleet.Vehicle, error) {
	query := `
		SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE organization_id = $1 AND ($2 = '' OR department = $2)
		ORDER BY fleet_number`

	rows, err := r.pool.Query(ctx, query, filter.OrganizationID, filter.Department)
	if err != nil {
		return nil, errors.NewStorageError("querying vehicles").WithCause(err)
	}
	defer rows.Close()

	var vehicles []*fleet.Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, errors.NewStorageError("scanning vehicle row").WithCause(err)
		}
		vehicles = append(vehicles, vehicle)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating vehicle rows").WithCause(err)
	}
	return vehicles, nil
}

func (r *VehicleRepository) Delete(ctx context.Context, filter auth.ScopeFilter, id uuid.UUID) error {
	query := `
		DELETE FROM vehicles
		WHERE id = $1 AND organization_id = $2 AND ($3 = '' OR department = $3)`

	tag, err := r.pool.Exec(ctx, query, id, filter.OrganizationID, filter.Department)
	if err != nil {
		return errors.NewStorageError("deleting vehicle").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("vehicle")
	}
	return nil
}

// VehiclesByScope satisfies the compliance engine's entity source.
func (r *VehicleRepository) VehiclesByScope(ctx context.Context, filter auth.ScopeFilter) ([]*fleet.Vehicle, error) {
	return r.FindByScope(ctx, filter)
}
