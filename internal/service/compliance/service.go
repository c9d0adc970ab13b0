package compliance

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/compliance"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
)

const auditEntityTypeRule = "compliance_rule"

// evaluateConcurrency bounds the per-rule fan-out of one evaluation run.
const evaluateConcurrency = 4

// Service is the compliance rule engine. Evaluation is idempotent: events
// are upserted keyed by (rule, entity), so re-running over unchanged data
// rewrites the same rows instead of accumulating duplicates.
type Service struct {
	logger   *zap.Logger
	rules    compliance.RuleRepository
	events   compliance.EventRepository
	entities EntitySource
	scope    *auth.ScopeResolver
	recorder AuditRecorder
	validate *validator.Validate
	now      func() time.Time
}

func NewService(
	logger *zap.Logger,
	rules compliance.RuleRepository,
	events compliance.EventRepository,
	entities EntitySource,
	scope *auth.ScopeResolver,
	recorder AuditRecorder,
) *Service {
	return &Service{
		logger:   logger,
		rules:    rules,
		events:   events,
		entities: entities,
		scope:    scope,
		recorder: recorder,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RuleError reports one rule that could not be evaluated. One bad rule
// must not suppress evaluation of the others, but it must not vanish
// silently either: a misconfigured rule masks non-compliance.
type RuleError struct {
	RuleID   uuid.UUID `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Err      error     `json:"-"`
	Message  string    `json:"message"`
}

// Result summarises one evaluation run, including per-rule partial
// failures.
type Result struct {
	EventsCreated int         `json:"events_created"`
	EventsUpdated int         `json:"events_updated"`
	RuleErrors    []RuleError `json:"rule_errors,omitempty"`
}

// Evaluate runs the rule engine for the caller's organization. The caller
// must hold compliance:manage. Evaluation is organization-wide regardless
// of the caller's department: compliance officers see across departments.
func (s *Service) Evaluate(ctx context.Context) (*Result, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermComplianceManage); err != nil {
		return nil, err
	}
	filter, err := s.scope.OrgScope(principal)
	if err != nil {
		return nil, err
	}
	return s.EvaluateOrganization(ctx, filter.OrganizationID)
}

// EvaluateOrganization runs the engine for one tenant. It is invoked by
// Evaluate on behalf of a principal and directly by the scheduler, which
// runs with no principal.
func (s *Service) EvaluateOrganization(ctx context.Context, orgID uuid.UUID) (*Result, error) {
	if orgID == uuid.Nil {
		return nil, errors.NewMissingTenantError()
	}

	rules, err := s.rules.FindActive(ctx, orgID)
	if err != nil {
		return nil, errors.NewStorageError("loading active rules").WithCause(err)
	}

	now := s.now()
	result := &Result{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evaluateConcurrency)

	for _, rule := range rules {
		g.Go(func() error {
			created, updated, err := s.evaluateRule(gctx, rule, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Configuration problems are collected per rule; storage
				// failures abort the run.
				if errors.IsType(err, errors.ErrorTypeConfiguration) {
					result.RuleErrors = append(result.RuleErrors, RuleError{
						RuleID:   rule.ID,
						RuleName: rule.Name,
						Err:      err,
						Message:  err.Error(),
					})
					return nil
				}
				return err
			}
			result.EventsCreated += created
			result.EventsUpdated += updated
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("compliance evaluation finished",
		zap.String("org_id", orgID.String()),
		zap.Int("rules", len(rules)),
		zap.Int("events_created", result.EventsCreated),
		zap.Int("events_updated", result.EventsUpdated),
		zap.Int("rule_errors", len(result.RuleErrors)))

	return result, nil
}

func (s *Service) evaluateRule(ctx context.Context, rule *compliance.Rule, now time.Time) (created, updated int, err error) {
	if !fleet.HasDateField(rule.EntityType, rule.FieldToCheck) {
		return 0, 0, errors.NewConfigurationError("UNKNOWN_RULE_FIELD",
			"rule references a field the entity type does not expose").WithDetails(map[string]interface{}{
			"field":       rule.FieldToCheck,
			"entity_type": rule.EntityType.String(),
		})
	}

	entities, err := s.loadEntities(ctx, rule)
	if err != nil {
		return 0, 0, err
	}

	for _, entity := range entities {
		event, ok := rule.Evaluate(entity, now)
		if !ok {
			// Field value absent: skipped, not recorded as OK.
			continue
		}
		outcome, err := s.events.Upsert(ctx, &event)
		if err != nil {
			return created, updated, errors.NewStorageError("upserting compliance event").WithCause(err)
		}
		if outcome == compliance.UpsertCreated {
			created++
		} else {
			updated++
		}
	}

	return created, updated, nil
}

func (s *Service) loadEntities(ctx context.Context, rule *compliance.Rule) ([]fleet.MonitoredEntity, error) {
	filter := auth.ScopeFilter{OrganizationID: rule.OrganizationID}

	switch rule.EntityType {
	case fleet.EntityTypeVehicle:
		vehicles, err := s.entities.VehiclesByScope(ctx, filter)
		if err != nil {
			return nil, errors.NewStorageError("loading vehicles").WithCause(err)
		}
		out := make([]fleet.MonitoredEntity, len(vehicles))
		for i, v := range vehicles {
			out[i] = v
		}
		return out, nil
	case fleet.EntityTypeDriver:
		drivers, err := s.entities.DriversByScope(ctx, filter)
		if err != nil {
			return nil, errors.NewStorageError("loading drivers").WithCause(err)
		}
		out := make([]fleet.MonitoredEntity, len(drivers))
		for i, d := range drivers {
			out[i] = d
		}
		return out, nil
	default:
		return nil, errors.NewConfigurationError("UNKNOWN_ENTITY_TYPE",
			"rule references an unknown entity type")
	}
}

// GetStats aggregates current events into the dashboard compliance view.
// Requires compliance:read.
func (s *Service) GetStats(ctx context.Context) (*compliance.Stats, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermComplianceRead); err != nil {
		return nil, err
	}
	filter, err := s.scope.OrgScope(principal)
	if err != nil {
		return nil, err
	}
	return s.StatsForOrganization(ctx, filter.OrganizationID)
}

// StatsForOrganization computes the aggregate without an authorization
// gate; the risk aggregator calls it on an already-scoped organization.
func (s *Service) StatsForOrganization(ctx context.Context, orgID uuid.UUID) (*compliance.Stats, error) {
	counts, err := s.events.CountByStatus(ctx, orgID)
	if err != nil {
		return nil, errors.NewStorageError("counting compliance events").WithCause(err)
	}
	active, err := s.rules.FindActive(ctx, orgID)
	if err != nil {
		return nil, errors.NewStorageError("loading active rules").WithCause(err)
	}

	stats := &compliance.Stats{
		OKEvents:       counts[compliance.StatusOK],
		WarningEvents:  counts[compliance.StatusWarning],
		CriticalEvents: counts[compliance.StatusCritical],
		OverdueEvents:  counts[compliance.StatusOverdue],
		ActiveRules:    len(active),
	}
	stats.OpenIssues = stats.WarningEvents + stats.CriticalEvents + stats.OverdueEvents
	stats.TotalEvents = stats.OKEvents + stats.OpenIssues

	if stats.TotalEvents > 0 {
		stats.CompliancePercentage = int(math.Round(float64(stats.OKEvents) / float64(stats.TotalEvents) * 100))
	} else {
		stats.CompliancePercentage = 100
	}

	return stats, nil
}

// Events lists current compliance events for the caller's organization.
func (s *Service) Events(ctx context.Context) ([]*compliance.Event, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermComplianceRead); err != nil {
		return nil, err
	}
	filter, err := s.scope.OrgScope(principal)
	if err != nil {
		return nil, err
	}
	events, err := s.events.FindByOrganization(ctx, filter.OrganizationID)
	if err != nil {
		return nil, errors.NewStorageError("listing compliance events").WithCause(err)
	}
	return events, nil
}

// RuleInput carries the user-editable rule fields.
type RuleInput struct {
	Name               string           `json:"name" validate:"required,max=200"`
	EntityType         fleet.EntityType `json:"entity_type"`
	FieldToCheck       string           `json:"field_to_check" validate:"required"`
	WarningDaysBefore  int              `json:"warning_days_before" validate:"gte=0"`
	CriticalDaysBefore int              `json:"critical_days_before" validate:"gte=0,ltefield=WarningDaysBefore"`
}

// CreateRule adds an active rule for the caller's organization. Requires
// compliance:manage; the mutation is audited.
func (s *Service) CreateRule(ctx context.Context, input RuleInput) (*compliance.Rule, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermComplianceManage); err != nil {
		return nil, err
	}
	filter, err := s.scope.OrgScope(principal)
	if err != nil {
		return nil, err
	}
	if err := s.validateRuleInput(input); err != nil {
		return nil, err
	}

	rule := compliance.NewRule(filter.OrganizationID, input.Name, input.EntityType,
		input.FieldToCheck, input.WarningDaysBefore, input.CriticalDaysBefore, principal.UserID)

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, errors.NewStorageError("saving compliance rule").WithCause(err)
	}

	s.recorder.RecordCreate(ctx, &rule.OrganizationID, auditEntityTypeRule, rule.ID,
		ruleSnapshot(rule), principal.UserID, "")

	return rule, nil
}

// UpdateRule rewrites the editable fields of an existing rule.
func (s *Service) UpdateRule(ctx context.Context, ruleID uuid.UUID, input RuleInput) (*compliance.Rule, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermComplianceManage); err != nil {
		return nil, err
	}
	filter, err := s.scope.OrgScope(principal)
	if err != nil {
		return nil, err
	}
	if err := s.validateRuleInput(input); err != nil {
		return nil, err
	}

	rule, err := s.rules.GetByID(ctx, filter.OrganizationID, ruleID)
	if err != nil {
		return nil, err
	}

	before := ruleSnapshot(rule)
	rule.Name = input.Name
	rule.EntityType = input.EntityType
	rule.FieldToCheck = input.FieldToCheck
	rule.WarningDaysBefore = input.WarningDaysBefore
	rule.CriticalDaysBefore = input.CriticalDaysBefore
	rule.UpdatedAt = s.now()

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, errors.NewStorageError("saving compliance rule").WithCause(err)
	}

	s.recorder.RecordUpdate(ctx, &rule.OrganizationID, auditEntityTypeRule, rule.ID,
		before, ruleSnapshot(rule), principal.UserID, "")

	return rule, nil
}

// DeactivateRule soft-disables a rule. Rules are never deleted, so the
// events they produced stay attributable.
func (s *Service) DeactivateRule(ctx context.Context, ruleID uuid.UUID) error {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermComplianceManage); err != nil {
		return err
	}
	filter, err := s.scope.OrgScope(principal)
	if err != nil {
		return err
	}

	rule, err := s.rules.GetByID(ctx, filter.OrganizationID, ruleID)
	if err != nil {
		return err
	}

	before := ruleSnapshot(rule)
	rule.Deactivate()

	if err := s.rules.Save(ctx, rule); err != nil {
		return errors.NewStorageError("saving compliance rule").WithCause(err)
	}

	s.recorder.RecordUpdate(ctx, &rule.OrganizationID, auditEntityTypeRule, rule.ID,
		before, ruleSnapshot(rule), principal.UserID, "")

	return nil
}

func (s *Service) validateRuleInput(input RuleInput) error {
	if err := s.validate.Struct(input); err != nil {
		return errors.NewValidationError("INVALID_RULE", "rule thresholds are invalid").WithCause(err)
	}
	if !input.EntityType.IsValid() {
		return errors.NewValidationError("INVALID_RULE", "unknown entity type")
	}
	if !fleet.HasDateField(input.EntityType, input.FieldToCheck) {
		return errors.NewConfigurationError("UNKNOWN_RULE_FIELD",
			"rule references a field the entity type does not expose")
	}
	return nil
}

func ruleSnapshot(rule *compliance.Rule) map[string]any {
	return map[string]any{
		"name":                 rule.Name,
		"entity_type":          rule.EntityType.String(),
		"field_to_check":       rule.FieldToCheck,
		"warning_days_before":  rule.WarningDaysBefore,
		"critical_days_before": rule.CriticalDaysBefore,
		"is_active":            rule.IsActive,
	}
}
