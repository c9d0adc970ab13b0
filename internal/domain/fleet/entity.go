package fleet

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which monitored entity a compliance rule binds to.
type EntityType int

const (
	EntityTypeVehicle EntityType = iota
	EntityTypeDriver
)

func (t EntityType) String() string {
	switch t {
	case EntityTypeVehicle:
		return "vehicle"
	case EntityTypeDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// IsValid reports whether t names a monitored entity type.
func (t EntityType) IsValid() bool {
	return t == EntityTypeVehicle || t == EntityTypeDriver
}

// MonitoredEntity is the capability compliance rules evaluate against: a
// tenant-owned record exposing named date fields. Lookup is a closed table
// per entity type, not reflection, so an unknown field name is detectable
// as a configuration error rather than a silent nil.
type MonitoredEntity interface {
	EntityID() uuid.UUID
	Organization() uuid.UUID
	DateField(name string) (*time.Time, bool)
}

// DateFieldNames returns the date fields monitorable on the given type.
// Used to validate rule configuration before it can mask non-compliance.
func DateFieldNames(entityType EntityType) []string {
	switch entityType {
	case EntityTypeVehicle:
		return vehicleDateFields
	case EntityTypeDriver:
		return driverDateFields
	default:
		return nil
	}
}

// HasDateField reports whether the entity type exposes the named date field.
func HasDateField(entityType EntityType, name string) bool {
	for _, f := range DateFieldNames(entityType) {
		if f == name {
			return true
		}
	}
	return false
}
