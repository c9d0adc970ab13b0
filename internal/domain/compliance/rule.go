package compliance

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

// RuleType is the closed set of supported rule evaluations.
type RuleType int

const (
	// RuleTypeExpiration monitors a date field against warning/critical
	// thresholds counted in days before the due date.
	RuleTypeExpiration RuleType = iota
)

func (t RuleType) String() string {
	switch t {
	case RuleTypeExpiration:
		return "expiration"
	default:
		return "unknown"
	}
}

// Rule is a declarative expiration monitor bound to one entity type and one
// named date field. Rules are soft-disabled via IsActive rather than
// deleted so historical events stay attributable.
type Rule struct {
	ID                 uuid.UUID        `json:"id" validate:"required"`
	OrganizationID     uuid.UUID        `json:"organization_id" validate:"required"`
	Name               string           `json:"name" validate:"required,max=200"`
	EntityType         fleet.EntityType `json:"entity_type"`
	FieldToCheck       string           `json:"field_to_check" validate:"required"`
	RuleType           RuleType         `json:"rule_type"`
	WarningDaysBefore  int              `json:"warning_days_before" validate:"gte=0"`
	CriticalDaysBefore int              `json:"critical_days_before" validate:"gte=0,ltefield=WarningDaysBefore"`
	IsActive           bool             `json:"is_active"`
	CreatedBy          uuid.UUID        `json:"created_by"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// NewRule creates an active expiration rule.
func NewRule(orgID uuid.UUID, name string, entityType fleet.EntityType, fieldToCheck string, warningDays, criticalDays int, createdBy uuid.UUID) *Rule {
	now := time.Now().UTC()
	return &Rule{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		Name:               name,
		EntityType:         entityType,
		FieldToCheck:       fieldToCheck,
		RuleType:           RuleTypeExpiration,
		WarningDaysBefore:  warningDays,
		CriticalDaysBefore: criticalDays,
		IsActive:           true,
		CreatedBy:          createdBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Deactivate soft-disables the rule.
func (r *Rule) Deactivate() {
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
}
