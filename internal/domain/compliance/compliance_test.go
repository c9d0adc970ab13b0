package compliance_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/compliance"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

func TestRuleClassify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rule := compliance.NewRule(uuid.New(), "License Expiration", fleet.EntityTypeDriver,
		fleet.DriverFieldLicenseExpiration, 60, 30, uuid.New())

	tests := []struct {
		name    string
		dueDate time.Time
		want    compliance.Status
	}{
		{
			name:    "due in 61 days is ok",
			dueDate: now.AddDate(0, 0, 61),
			want:    compliance.StatusOK,
		},
		{
			name:    "due in 60 days hits warning threshold",
			dueDate: now.AddDate(0, 0, 60),
			want:    compliance.StatusWarning,
		},
		{
			name:    "due in 31 days is still warning",
			dueDate: now.AddDate(0, 0, 31),
			want:    compliance.StatusWarning,
		},
		{
			name:    "due in 30 days hits critical threshold",
			dueDate: now.AddDate(0, 0, 30),
			want:    compliance.StatusCritical,
		},
		{
			name:    "due today is critical, not overdue",
			dueDate: now,
			want:    compliance.StatusCritical,
		},
		{
			name:    "one day past due is overdue",
			dueDate: now.AddDate(0, 0, -1),
			want:    compliance.StatusOverdue,
		},
		{
			name:    "a partial day remaining floors to zero days",
			dueDate: now.Add(12 * time.Hour),
			want:    compliance.StatusCritical,
		},
		{
			name:    "a few hours past due floors below zero",
			dueDate: now.Add(-2 * time.Hour),
			want:    compliance.StatusOverdue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Classify(tt.dueDate, now))
		})
	}
}

func TestRuleClassifyCriticalWinsOverWarning(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Thresholds coincide: both would match 10 days out.
	rule := compliance.NewRule(uuid.New(), "Tight Window", fleet.EntityTypeVehicle,
		fleet.VehicleFieldInsuranceExpiration, 10, 10, uuid.New())

	assert.Equal(t, compliance.StatusCritical, rule.Classify(now.AddDate(0, 0, 10), now))
}

func TestRuleEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	orgID := uuid.New()

	rule := compliance.NewRule(orgID, "Insurance Expiration", fleet.EntityTypeVehicle,
		fleet.VehicleFieldInsuranceExpiration, 30, 7, uuid.New())
	rule.OrganizationID = orgID

	t.Run("produces event for a populated field", func(t *testing.T) {
		due := now.AddDate(0, 0, 5)
		vehicle := fleet.NewVehicle(orgID, "VEH-001", "1HGBH41JXMN109186", "FLEET_OPS")
		vehicle.InsuranceExpiration = &due

		event, ok := rule.Evaluate(vehicle, now)
		require.True(t, ok)
		assert.Equal(t, rule.ID, event.RuleID)
		assert.Equal(t, vehicle.ID, event.EntityID)
		assert.Equal(t, orgID, event.OrganizationID)
		assert.Equal(t, compliance.StatusCritical, event.Status)
		assert.Equal(t, due, event.DueDate)
	})

	t.Run("skips entity with nil field value", func(t *testing.T) {
		vehicle := fleet.NewVehicle(orgID, "VEH-002", "2HGBH41JXMN109187", "FLEET_OPS")

		_, ok := rule.Evaluate(vehicle, now)
		assert.False(t, ok, "absence of a date is not evidence of compliance")
	})

	t.Run("skips unknown field name", func(t *testing.T) {
		bad := compliance.NewRule(orgID, "Bad Field", fleet.EntityTypeVehicle,
			"warrantyExpiration", 30, 7, uuid.New())
		vehicle := fleet.NewVehicle(orgID, "VEH-003", "3HGBH41JXMN109188", "FLEET_OPS")

		_, ok := bad.Evaluate(vehicle, now)
		assert.False(t, ok)
	})
}

func TestHasDateField(t *testing.T) {
	assert.True(t, fleet.HasDateField(fleet.EntityTypeVehicle, fleet.VehicleFieldInsuranceExpiration))
	assert.True(t, fleet.HasDateField(fleet.EntityTypeDriver, fleet.DriverFieldCDLExpiration))
	assert.False(t, fleet.HasDateField(fleet.EntityTypeVehicle, fleet.DriverFieldCDLExpiration))
	assert.False(t, fleet.HasDateField(fleet.EntityTypeDriver, "nonexistent"))
}
