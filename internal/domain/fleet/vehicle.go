package fleet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VehicleStatus tracks a vehicle through its service lifecycle.
type VehicleStatus int

const (
	VehicleStatusInService VehicleStatus = iota
	VehicleStatusInRepair
	VehicleStatusSurplus
	VehicleStatusDisposed
)

func (s VehicleStatus) String() string {
	switch s {
	case VehicleStatusInService:
		return "in_service"
	case VehicleStatusInRepair:
		return "in_repair"
	case VehicleStatusSurplus:
		return "surplus"
	case VehicleStatusDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Vehicle is a monitored fleet asset. Department holds the denormalized
// department code used by scope filters.
type Vehicle struct {
	ID                      uuid.UUID       `json:"id"`
	OrganizationID          uuid.UUID       `json:"organization_id"`
	FleetNumber             string          `json:"fleet_number"`
	VIN                     string          `json:"vin"`
	PlateNumber             string          `json:"plate_number"`
	Year                    int             `json:"year"`
	Make                    string          `json:"make"`
	Model                   string          `json:"model"`
	Department              string          `json:"department"`
	Status                  VehicleStatus   `json:"status"`
	Odometer                int64           `json:"odometer"`
	InServiceDate           *time.Time      `json:"in_service_date,omitempty"`
	ReplacementTargetYear   int             `json:"replacement_target_year"`
	ReplacementCostEstimate decimal.Decimal `json:"replacement_cost_estimate"`
	LastDOTDate             *time.Time      `json:"last_dot_date,omitempty"`
	InsuranceExpiration     *time.Time      `json:"insurance_expiration,omitempty"`
	RegistrationExpiration  *time.Time      `json:"registration_expiration,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

const (
	VehicleFieldLastDOTDate            = "lastDOTDate"
	VehicleFieldInsuranceExpiration    = "insuranceExpiration"
	VehicleFieldRegistrationExpiration = "registrationExpiration"
)

var vehicleDateFields = []string{
	VehicleFieldLastDOTDate,
	VehicleFieldInsuranceExpiration,
	VehicleFieldRegistrationExpiration,
}

// NewVehicle creates a vehicle owned by the given organization.
func NewVehicle(orgID uuid.UUID, fleetNumber, vin, department string) *Vehicle {
	now := time.Now().UTC()
	return &Vehicle{
		ID:             uuid.New(),
		OrganizationID: orgID,
		FleetNumber:    fleetNumber,
		VIN:            vin,
		Department:     department,
		Status:         VehicleStatusInService,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (v *Vehicle) EntityID() uuid.UUID {
	return v.ID
}

func (v *Vehicle) Organization() uuid.UUID {
	return v.OrganizationID
}

// DateField looks up a named compliance date. The second return reports
// whether the name is a known vehicle field; a known field may still hold
// nil when the date was never recorded.
func (v *Vehicle) DateField(name string) (*time.Time, bool) {
	switch name {
	case VehicleFieldLastDOTDate:
		return v.LastDOTDate, true
	case VehicleFieldInsuranceExpiration:
		return v.InsuranceExpiration, true
	case VehicleFieldRegistrationExpiration:
		return v.RegistrationExpiration, true
	default:
		return nil, false
	}
}

// Snapshot flattens the audit-relevant fields for diffing.
func (v *Vehicle) Snapshot() map[string]any {
	return map[string]any{
		"fleet_number":            v.FleetNumber,
		"vin":                     v.VIN,
		"plate_number":            v.PlateNumber,
		"year":                    v.Year,
		"make":                    v.Make,
		"model":                   v.Model,
		"department":              v.Department,
		"status":                  v.Status.String(),
		"odometer":                v.Odometer,
		"replacement_target_year": v.ReplacementTargetYear,
		"replacement_cost":        v.ReplacementCostEstimate.String(),
		"last_dot_date":           formatDate(v.LastDOTDate),
		"insurance_expiration":    formatDate(v.InsuranceExpiration),
		"registration_expiration": formatDate(v.RegistrationExpiration),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
