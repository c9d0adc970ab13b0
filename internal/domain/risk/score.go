package risk

import "math"

// Policy holds the scoring constants. They encode a policy choice rather
// than a measured quantity, so they are configuration with defaults, not
// literals buried in the computation.
type Policy struct {
	// MaintenanceBaseline pads the maintenance denominator so the score is
	// defined when no plans exist and is damped when counts are small.
	MaintenanceBaseline int `json:"maintenance_baseline"`
	// IncidentMaxExpected is the incident count in 30 days that drives the
	// incident sub-score to zero.
	IncidentMaxExpected int `json:"incident_max_expected"`

	ComplianceWeight  float64 `json:"compliance_weight"`
	MaintenanceWeight float64 `json:"maintenance_weight"`
	IncidentWeight    float64 `json:"incident_weight"`
}

// DefaultPolicy returns the standard 40/30/30 weighting.
func DefaultPolicy() Policy {
	return Policy{
		MaintenanceBaseline: 50,
		IncidentMaxExpected: 50,
		ComplianceWeight:    0.4,
		MaintenanceWeight:   0.3,
		IncidentWeight:      0.3,
	}
}

// MaintenanceStats are the preventive-maintenance inputs to the score.
type MaintenanceStats struct {
	OverdueCount   int `json:"overdue_count"`
	Upcoming30Days int `json:"upcoming_30_days"`
}

// IncidentStats are the incident inputs to the score.
type IncidentStats struct {
	Last30Days int `json:"last_30_days"`
}

// Score is the derived 0-100 composite. It has no lifecycle of its own and
// is recomputed from live aggregates on demand.
type Score struct {
	Score            int `json:"score"`
	ComplianceScore  int `json:"compliance_score"`
	MaintenanceScore int `json:"maintenance_score"`
	IncidentScore    int `json:"incident_score"`
}

// Compute derives the fleet risk score. It is a pure function of its
// inputs: same numbers in, same score out, with no reads or side effects.
func Compute(compliancePercentage int, maintenance MaintenanceStats, incidents IncidentStats, policy Policy) Score {
	complianceScore := clamp(compliancePercentage)

	maintenanceScore := 100
	total := maintenance.OverdueCount + maintenance.Upcoming30Days + policy.MaintenanceBaseline
	if total > 0 {
		maintenanceScore = int(math.Round(float64(total-maintenance.OverdueCount) / float64(total) * 100))
	}

	incidentScore := 0
	if policy.IncidentMaxExpected > 0 {
		incidentScore = int(math.Round(float64(policy.IncidentMaxExpected-incidents.Last30Days) /
			float64(policy.IncidentMaxExpected) * 100))
		if incidentScore < 0 {
			incidentScore = 0
		}
	}

	composite := int(math.Round(float64(complianceScore)*policy.ComplianceWeight +
		float64(maintenanceScore)*policy.MaintenanceWeight +
		float64(incidentScore)*policy.IncidentWeight))

	return Score{
		Score:            clamp(composite),
		ComplianceScore:  complianceScore,
		MaintenanceScore: clamp(maintenanceScore),
		IncidentScore:    incidentScore,
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
