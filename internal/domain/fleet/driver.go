package fleet

import (
	"time"

	"github.com/google/uuid"
)

// DriverStatus tracks whether an operator may be assigned to vehicles.
type DriverStatus int

const (
	DriverStatusActive DriverStatus = iota
	DriverStatusSuspended
	DriverStatusInactive
)

func (s DriverStatus) String() string {
	switch s {
	case DriverStatusActive:
		return "active"
	case DriverStatusSuspended:
		return "suspended"
	case DriverStatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Driver is a monitored operator record.
type Driver struct {
	ID                    uuid.UUID    `json:"id"`
	OrganizationID        uuid.UUID    `json:"organization_id"`
	EmployeeNumber        string       `json:"employee_number"`
	Name                  string       `json:"name"`
	Phone                 string       `json:"phone"`
	Department            string       `json:"department"`
	Status                DriverStatus `json:"status"`
	CDLFlag               bool         `json:"cdl_flag"`
	LicenseExpiration     *time.Time   `json:"license_expiration,omitempty"`
	CDLExpiration         *time.Time   `json:"cdl_expiration,omitempty"`
	MedicalCertExpiration *time.Time   `json:"medical_cert_expiration,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

const (
	DriverFieldLicenseExpiration     = "licenseExpiration"
	DriverFieldCDLExpiration         = "cdlExpiration"
	DriverFieldMedicalCertExpiration = "medicalCertExpiration"
)

var driverDateFields = []string{
	DriverFieldLicenseExpiration,
	DriverFieldCDLExpiration,
	DriverFieldMedicalCertExpiration,
}

// NewDriver creates a driver owned by the given organization.
func NewDriver(orgID uuid.UUID, employeeNumber, name, department string) *Driver {
	now := time.Now().UTC()
	return &Driver{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EmployeeNumber: employeeNumber,
		Name:           name,
		Department:     department,
		Status:         DriverStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (d *Driver) EntityID() uuid.UUID {
	return d.ID
}

func (d *Driver) Organization() uuid.UUID {
	return d.OrganizationID
}

// DateField looks up a named compliance date, reporting whether the name
// is a known driver field.
func (d *Driver) DateField(name string) (*time.Time, bool) {
	switch name {
	case DriverFieldLicenseExpiration:
		return d.LicenseExpiration, true
	case DriverFieldCDLExpiration:
		return d.CDLExpiration, true
	case DriverFieldMedicalCertExpiration:
		return d.MedicalCertExpiration, true
	default:
		return nil, false
	}
}

// Snapshot flattens the audit-relevant fields for diffing.
func (d *Driver) Snapshot() map[string]any {
	return map[string]any{
		"employee_number":         d.EmployeeNumber,
		"name":                    d.Name,
		"phone":                   d.Phone,
		"department":              d.Department,
		"status":                  d.Status.String(),
		"cdl_flag":                d.CDLFlag,
		"license_expiration":      formatDate(d.LicenseExpiration),
		"cdl_expiration":          formatDate(d.CDLExpiration),
		"medical_cert_expiration": formatDate(d.MedicalCertExpiration),
	}
}
