package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/risk"
)

func TestCompute(t *testing.T) {
	policy := risk.DefaultPolicy()

	tests := []struct {
		name          string
		compliancePct int
		maintenance   risk.MaintenanceStats
		incidents     risk.IncidentStats
		want          risk.Score
	}{
		{
			name:          "all subsystems healthy saturates at 100",
			compliancePct: 100,
			maintenance:   risk.MaintenanceStats{},
			incidents:     risk.IncidentStats{},
			want:          risk.Score{Score: 100, ComplianceScore: 100, MaintenanceScore: 100, IncidentScore: 100},
		},
		{
			name:          "incidents at max expected zero the incident score",
			compliancePct: 100,
			maintenance:   risk.MaintenanceStats{},
			incidents:     risk.IncidentStats{Last30Days: 50},
			want:          risk.Score{Score: 70, ComplianceScore: 100, MaintenanceScore: 100, IncidentScore: 0},
		},
		{
			name:          "incidents beyond max expected clamp to zero",
			compliancePct: 100,
			maintenance:   risk.MaintenanceStats{},
			incidents:     risk.IncidentStats{Last30Days: 200},
			want:          risk.Score{Score: 70, ComplianceScore: 100, MaintenanceScore: 100, IncidentScore: 0},
		},
		{
			name:          "overdue maintenance drags the maintenance score",
			compliancePct: 100,
			maintenance:   risk.MaintenanceStats{OverdueCount: 25, Upcoming30Days: 25},
			incidents:     risk.IncidentStats{},
			// total = 25+25+50 = 100, score = (100-25)/100 = 75
			want: risk.Score{Score: 93, ComplianceScore: 100, MaintenanceScore: 75, IncidentScore: 100},
		},
		{
			name:          "zero compliance with healthy fleet",
			compliancePct: 0,
			maintenance:   risk.MaintenanceStats{},
			incidents:     risk.IncidentStats{},
			want:          risk.Score{Score: 60, ComplianceScore: 0, MaintenanceScore: 100, IncidentScore: 100},
		},
		{
			name:          "everything failing bottoms out at zero",
			compliancePct: 0,
			maintenance:   risk.MaintenanceStats{OverdueCount: 100000},
			incidents:     risk.IncidentStats{Last30Days: 100000},
			want:          risk.Score{Score: 0, ComplianceScore: 0, MaintenanceScore: 0, IncidentScore: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := risk.Compute(tt.compliancePct, tt.maintenance, tt.incidents, policy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	policy := risk.DefaultPolicy()
	maintenance := risk.MaintenanceStats{OverdueCount: 7, Upcoming30Days: 13}
	incidents := risk.IncidentStats{Last30Days: 4}

	first := risk.Compute(83, maintenance, incidents, policy)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, risk.Compute(83, maintenance, incidents, policy))
	}
}

func TestComputeBounds(t *testing.T) {
	policy := risk.DefaultPolicy()

	for _, pct := range []int{-50, 0, 50, 100, 500} {
		for _, overdue := range []int{0, 10, 10000} {
			for _, last30 := range []int{0, 25, 10000} {
				got := risk.Compute(pct, risk.MaintenanceStats{OverdueCount: overdue}, risk.IncidentStats{Last30Days: last30}, policy)
				assert.GreaterOrEqual(t, got.Score, 0)
				assert.LessOrEqual(t, got.Score, 100)
			}
		}
	}
}
