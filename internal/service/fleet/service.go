package fleet

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

const (
	auditEntityTypeVehicle = "vehicle"
	auditEntityTypeDriver  = "driver"
)

// AuditRecorder is the slice of the audit recorder fleet mutations need.
type AuditRecorder interface {
	RecordCreate(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, after map[string]any, actorID uuid.UUID, ipAddress string)
	RecordUpdate(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, before, after map[string]any, actorID uuid.UUID, ipAddress string)
	RecordDelete(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, before map[string]any, actorID uuid.UUID, ipAddress string)
}

// Service gates every vehicle and driver mutation behind the same
// sequence: authenticate, check the permission, resolve the tenancy
// scope, then touch storage. A row outside the caller's scope is
// reported as not found, never as forbidden, so callers cannot probe
// other tenants' id space.
type Service struct {
	logger   *zap.Logger
	vehicles fleet.VehicleRepository
	drivers  fleet.DriverRepository
	scope    *auth.ScopeResolver
	recorder AuditRecorder
	validate *validator.Validate
	now      func() time.Time
}

func NewService(
	logger *zap.Logger,
	vehicles fleet.VehicleRepository,
	drivers fleet.DriverRepository,
	scope *auth.ScopeResolver,
	recorder AuditRecorder,
) *Service {
	return &Service{
		logger:   logger,
		vehicles: vehicles,
		drivers:  drivers,
		scope:    scope,
		recorder: recorder,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) authorize(ctx context.Context, perm auth.Permission) (auth.Principal, auth.ScopeFilter, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return auth.Principal{}, auth.ScopeFilter{}, err
	}
	if err := auth.RequirePermission(principal.Role, perm); err != nil {
		return auth.Principal{}, auth.ScopeFilter{}, err
	}
	filter, err := s.scope.ResolveScope(ctx, principal)
	if err != nil {
		return auth.Principal{}, auth.ScopeFilter{}, err
	}
	return principal, filter, nil
}

// VehicleInput carries the user-editable vehicle fields.
type VehicleInput struct {
	FleetNumber             string              `json:"fleet_number" validate:"required,max=50"`
	VIN                     string              `json:"vin" validate:"required,min=11,max=17"`
	PlateNumber             string              `json:"plate_number" validate:"max=20"`
	Year                    int                 `json:"year" validate:"omitempty,gte=1950,lte=2100"`
	Make                    string              `json:"make" validate:"max=100"`
	Model                   string              `json:"model" validate:"max=100"`
	Department              string              `json:"department" validate:"required,max=50"`
	Status                  fleet.VehicleStatus `json:"status"`
	Odometer                int64               `json:"odometer" validate:"gte=0"`
	InServiceDate           *time.Time          `json:"in_service_date,omitempty"`
	ReplacementTargetYear   int                 `json:"replacement_target_year" validate:"omitempty,gte=1950,lte=2100"`
	ReplacementCostEstimate decimal.Decimal     `json:"replacement_cost_estimate"`
	LastDOTDate             *time.Time          `json:"last_dot_date,omitempty"`
	InsuranceExpiration     *time.Time          `json:"insurance_expiration,omitempty"`
	RegistrationExpiration  *time.Time          `json:"registration_expiration,omitempty"`
}

func (s *Service) applyVehicleInput(v *fleet.Vehicle, input VehicleInput) {
	v.FleetNumber = input.FleetNumber
	v.VIN = input.VIN
	v.PlateNumber = input.PlateNumber
	v.Year = input.Year
	v.Make = input.Make
	v.Model = input.Model
	v.Department = input.Department
	v.Status = input.Status
	v.Odometer = input.Odometer
	v.InServiceDate = input.InServiceDate
	v.ReplacementTargetYear = input.ReplacementTargetYear
	v.ReplacementCostEstimate = input.ReplacementCostEstimate
	v.LastDOTDate = input.LastDOTDate
	v.InsuranceExpiration = input.InsuranceExpiration
	v.RegistrationExpiration = input.RegistrationExpiration
	v.UpdatedAt = s.now()
}

// checkDepartment rejects a mutation that would land an entity outside a
// department-limited caller's scope.
func checkDepartment(filter auth.ScopeFilter, department string) error {
	if filter.HasDepartment() && department != filter.Department {
		return errors.NewAuthorizationError()
	}
	return nil
}

// CreateVehicle adds a vehicle to the caller's organization.
func (s *Service) CreateVehicle(ctx context.Context, input VehicleInput) (*fleet.Vehicle, error) {
	principal, filter, err := s.authorize(ctx, auth.PermVehiclesCreate)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.NewValidationError("INVALID_VEHICLE", "vehicle fields are invalid").WithCause(err)
	}
	if err := checkDepartment(filter, input.Department); err != nil {
		return nil, err
	}

	vehicle := fleet.NewVehicle(filter.OrganizationID, input.FleetNumber, input.VIN, input.Department)
	s.applyVehicleInput(vehicle, input)

	if err := s.vehicles.Save(ctx, vehicle); err != nil {
		return nil, errors.NewStorageError("saving vehicle").WithCause(err)
	}

	s.recorder.RecordCreate(ctx, &vehicle.OrganizationID, auditEntityTypeVehicle, vehicle.ID,
		vehicle.Snapshot(), principal.UserID, auth.ClientIPFromContext(ctx))

	return vehicle, nil
}

// GetVehicle returns one vehicle within the caller's scope.
func (s *Service) GetVehicle(ctx context.Context, id uuid.UUID) (*fleet.Vehicle, error) {
	_, filter, err := s.authorize(ctx, auth.PermVehiclesRead)
	if err != nil {
		return nil, err
	}
	return s.vehicles.GetByID(ctx, filter, id)
}

// ListVehicles returns the vehicles visible to the caller.
func (s *Service) ListVehicles(ctx context.Context) ([]*fleet.Vehicle, error) {
	_, filter, err := s.authorize(ctx, auth.PermVehiclesRead)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.vehicles.FindByScope(ctx, filter)
	if err != nil {
		return nil, errors.NewStorageError("listing vehicles").WithCause(err)
	}
	return vehicles, nil
}

// UpdateVehicle rewrites the editable fields of a vehicle in the
// caller's scope.
func (s *Service) UpdateVehicle(ctx context.Context, id uuid.UUID, input VehicleInput) (*fleet.Vehicle, error) {
	principal, filter, err := s.authorize(ctx, auth.PermVehiclesUpdate)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.NewValidationError("INVALID_VEHICLE", "vehicle fields are invalid").WithCause(err)
	}
	if err := checkDepartment(filter, input.Department); err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.GetByID(ctx, filter, id)
	if err != nil {
		return nil, err
	}

	before := vehicle.Snapshot()
	s.applyVehicleInput(vehicle, input)

	if err := s.vehicles.Save(ctx, vehicle); err != nil {
		return nil, errors.NewStorageError("saving vehicle").WithCause(err)
	}

	s.recorder.RecordUpdate(ctx, &vehicle.OrganizationID, auditEntityTypeVehicle, vehicle.ID,
		before, vehicle.Snapshot(), principal.UserID, auth.ClientIPFromContext(ctx))

	return vehicle, nil
}

// DeleteVehicle removes a vehicle in the caller's scope, preserving its
// final snapshot in the audit trail.
func (s *Service) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	principal, filter, err := s.authorize(ctx, auth.PermVehiclesDelete)
	if err != nil {
		return err
	}

	vehicle, err := s.vehicles.GetByID(ctx, filter, id)
	if err != nil {
		return err
	}

	if err := s.vehicles.Delete(ctx, filter, id); err != nil {
		return errors.NewStorageError("deleting vehicle").WithCause(err)
	}

	s.recorder.RecordDelete(ctx, &vehicle.OrganizationID, auditEntityTypeVehicle, vehicle.ID,
		vehicle.Snapshot(), principal.UserID, auth.ClientIPFromContext(ctx))

	return nil
}

// DriverInput carries the user-editable driver fields.
type DriverInput struct {
	EmployeeNumber        string             `json:"employee_number" validate:"required,max=50"`
	Name                  string             `json:"name" validate:"required,max=200"`
	Phone                 string             `json:"phone" validate:"max=30"`
	Department            string             `json:"department" validate:"required,max=50"`
	Status                fleet.DriverStatus `json:"status"`
	CDLFlag               bool               `json:"cdl_flag"`
	LicenseExpiration     *time.Time         `json:"license_expiration,omitempty"`
	CDLExpiration         *time.Time         `json:"cdl_expiration,omitempty"`
	MedicalCertExpiration *time.Time         `json:"medical_cert_expiration,omitempty"`
}

func (s *Service) applyDriverInput(d *fleet.Driver, input DriverInput) {
	d.EmployeeNumber = input.EmployeeNumber
	d.Name = input.Name
	d.Phone = input.Phone
	d.Department = input.Department
	d.Status = input.Status
	d.CDLFlag = input.CDLFlag
	d.LicenseExpiration = input.LicenseExpiration
	d.CDLExpiration = input.CDLExpiration
	d.MedicalCertExpiration = input.MedicalCertExpiration
	d.UpdatedAt = s.now()
}

// CreateDriver adds a driver to the caller's organization.
func (s *Service) CreateDriver(ctx context.Context, input DriverInput) (*fleet.Driver, error) {
	principal, filter, err := s.authorize(ctx, auth.PermDriversCreate)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.NewValidationError("INVALID_DRIVER", "driver fields are invalid").WithCause(err)
	}
	if err := checkDepartment(filter, input.Department); err != nil {
		return nil, err
	}

	driver := fleet.NewDriver(filter.OrganizationID, input.EmployeeNumber, input.Name, input.Department)
	s.applyDriverInput(driver, input)

	if err := s.drivers.Save(ctx, driver); err != nil {
		return nil, errors.NewStorageError("saving driver").WithCause(err)
	}

	s.recorder.RecordCreate(ctx, &driver.OrganizationID, auditEntityTypeDriver, driver.ID,
		driver.Snapshot(), principal.UserID, auth.ClientIPFromContext(ctx))

	return driver, nil
}

// GetDriver returns one driver within the caller's scope.
func (s *Service) GetDriver(ctx context.Context, id uuid.UUID) (*fleet.Driver, error) {
	_, filter, err := s.authorize(ctx, auth.PermDriversRead)
	if err != nil {
		return nil, err
	}
	return s.drivers.GetByID(ctx, filter, id)
}

// ListDrivers returns the drivers visible to the caller.
func (s *Service) ListDrivers(ctx context.Context) ([]*fleet.Driver, error) {
	_, filter, err := s.authorize(ctx, auth.PermDriversRead)
	if err != nil {
		return nil, err
	}
	drivers, err := s.drivers.FindByScope(ctx, filter)
	if err != nil {
		return nil, errors.NewStorageError("listing drivers").WithCause(err)
	}
	return drivers, nil
}

// UpdateDriver rewrites the editable fields of a driver in the caller's
// scope.
func (s *Service) UpdateDriver(ctx context.Context, id uuid.UUID, input DriverInput) (*fleet.Driver, error) {
	principal, filter, err := s.authorize(ctx, auth.PermDriversUpdate)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.NewValidationError("INVALID_DRIVER", "driver fields are invalid").WithCause(err)
	}
	if err := checkDepartment(filter, input.Department); err != nil {
		return nil, err
	}

	driver, err := s.drivers.GetByID(ctx, filter, id)
	if err != nil {
		return nil, err
	}

	before := driver.Snapshot()
	s.applyDriverInput(driver, input)

	if err := s.drivers.Save(ctx, driver); err != nil {
		return nil, errors.NewStorageError("saving driver").WithCause(err)
	}

	s.recorder.RecordUpdate(ctx, &driver.OrganizationID, auditEntityTypeDriver, driver.ID,
		before, driver.Snapshot(), principal.UserID, auth.ClientIPFromContext(ctx))

	return driver, nil
}

// DeleteDriver removes a driver in the caller's scope.
func (s *Service) DeleteDriver(ctx context.Context, id uuid.UUID) error {
	principal, filter, err := s.authorize(ctx, auth.PermDriversDelete)
	if err != nil {
		return err
	}

	driver, err := s.drivers.GetByID(ctx, filter, id)
	if err != nil {
		return err
	}

	if err := s.drivers.Delete(ctx, filter, id); err != nil {
		return errors.NewStorageError("deleting driver").WithCause(err)
	}

	s.recorder.RecordDelete(ctx, &driver.OrganizationID, auditEntityTypeDriver, driver.ID,
		driver.Snapshot(), principal.UserID, auth.ClientIPFromContext(ctx))

	return nil
}
