package compliance

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

// Status is the bounded compliance state for one (rule, entity) pair.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusCritical
	StatusOverdue
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	case StatusOverdue:
		return "overdue"
	default:
		return "unknown"
	}
}

// IsCompliant reports whether the status counts toward the compliance
// percentage. Anything past OK is an open issue.
func (s Status) IsCompliant() bool {
	return s == StatusOK
}

// Event is the current computed status for one rule applied to one entity.
// At most one event exists per (RuleID, EntityID); re-evaluation replaces
// the prior status rather than accumulating rows. Only the rule engine
// writes events.
type Event struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	RuleID         uuid.UUID        `json:"rule_id"`
	EntityType     fleet.EntityType `json:"entity_type"`
	EntityID       uuid.UUID        `json:"entity_id"`
	Status         Status           `json:"status"`
	DueDate        time.Time        `json:"due_date"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Classify computes the status for a due date against a rule's thresholds.
// The critical threshold is checked before warning, so critical wins when
// both would match.
func (r *Rule) Classify(dueDate time.Time, now time.Time) Status {
	dueInDays := int(math.Floor(dueDate.Sub(now).Hours() / 24))

	switch {
	case dueInDays < 0:
		return StatusOverdue
	case dueInDays <= r.CriticalDaysBefore:
		return StatusCritical
	case dueInDays <= r.WarningDaysBefore:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Evaluate applies the rule to one entity. The second return is false when
// the entity's field holds no value: absence is not evidence of compliance,
// so no event is produced. An unknown field name is reported by the caller
// as a configuration error before evaluation starts.
func (r *Rule) Evaluate(entity fleet.MonitoredEntity, now time.Time) (Event, bool) {
	value, known := entity.DateField(r.FieldToCheck)
	if !known || value == nil {
		return Event{}, false
	}

	return Event{
		ID:             uuid.New(),
		OrganizationID: r.OrganizationID,
		RuleID:         r.ID,
		EntityType:     r.EntityType,
		EntityID:       entity.EntityID(),
		Status:         r.Classify(*value, now),
		DueDate:        *value,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, true
}
