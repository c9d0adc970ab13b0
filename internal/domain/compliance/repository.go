package compliance

import (
	"context"

	"github.com/google/uuid"
)

// RuleRepository persists compliance rules.
type RuleRepository interface {
	// Save creates or updates a rule.
	Save(ctx context.Context, rule *Rule) error

	// GetByID retrieves a rule within its organization.
	GetByID(ctx context.Context, orgID, ruleID uuid.UUID) (*Rule, error)

	// FindActive retrieves all active rules for an organization.
	FindActive(ctx context.Context, orgID uuid.UUID) ([]*Rule, error)

	// FindByOrganization retrieves every rule for an organization,
	// including soft-disabled ones.
	FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*Rule, error)
}

// UpsertResult reports whether an upsert inserted a new row or replaced an
// existing one.
type UpsertResult int

const (
	UpsertCreated UpsertResult = iota
	UpsertUpdated
)

// EventRepository persists compliance events. Upsert must be an atomic
// conditional write keyed by (rule, entity) at the storage layer, never a
// read-then-write pair, so concurrent evaluation runs cannot race into
// duplicate rows.
type EventRepository interface {
	// Upsert inserts the event or replaces the status and due date of the
	// existing row for the same (RuleID, EntityID).
	Upsert(ctx context.Context, event *Event) (UpsertResult, error)

	// FindByOrganization lists current events for an organization.
	FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*Event, error)

	// CountByStatus aggregates current events per status.
	CountByStatus(ctx context.Context, orgID uuid.UUID) (map[Status]int, error)
}

// Stats is the dashboard-facing aggregate over current events.
type Stats struct {
	TotalEvents          int `json:"total_events"`
	OKEvents             int `json:"ok_events"`
	WarningEvents        int `json:"warning_events"`
	CriticalEvents       int `json:"critical_events"`
	OverdueEvents        int `json:"overdue_events"`
	ActiveRules          int `json:"active_rules"`
	OpenIssues           int `json:"open_issues"`
	CompliancePercentage int `json:"compliance_percentage"`
}
