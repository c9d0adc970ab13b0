package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/compliance"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

// ComplianceRuleRepository is the Postgres implementation of
// compliance.RuleRepository.
type ComplianceRuleRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewComplianceRuleRepository(pool *pgxpool.Pool, logger *zap.Logger) *ComplianceRuleRepository {
	return &ComplianceRuleRepository{pool: pool, logger: logger}
}

const ruleColumns = `
	id, organization_id, name, entity_type, field_to_check, rule_type,
	warning_days_before, critical_days_before, is_active, created_by,
	created_at, updated_at`

func scanRule(row pgx.Row) (*compliance.Rule, error) {
	var r compliance.Rule
	err := row.Scan(
		&r.ID, &r.OrganizationID, &r.Name, &r.EntityType, &r.FieldToCheck,
		&r.RuleType, &r.WarningDaysBefore, &r.CriticalDaysBefore, &r.IsActive,
		&r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *ComplianceRuleRepository) Save(ctx context.Context, rule *compliance.Rule) error {
	query := `
		INSERT INTO compliance_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			entity_type = EXCLUDED.entity_type,
			field_to_check = EXCLUDED.field_to_check,
			warning_days_before = EXCLUDED.warning_days_before,
			critical_days_before = EXCLUDED.critical_days_before,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.OrganizationID, rule.Name, rule.EntityType,
		rule.FieldToCheck, rule.RuleType, rule.WarningDaysBefore,
		rule.CriticalDaysBefore, rule.IsActive, rule.CreatedBy,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return errors.NewStorageError("saving compliance rule").WithCause(err)
	}
	return nil
}

func (r *ComplianceRuleRepository) GetByID(ctx context.Context, orgID, ruleID uuid.UUID) (*compliance.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM compliance_rules
		WHERE id = $1 AND organization_id = $2`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, ruleID, orgID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("compliance rule")
		}
		return nil, errors.NewStorageError("querying compliance rule").WithCause(err)
	}
	return rule, nil
}

func (r *ComplianceRuleRepository) FindActive(ctx context.Context, orgID uuid.UUID) ([]*compliance.Rule, error) {
	return r.find(ctx, `
		SELECT `+ruleColumns+`
		FROM compliance_rules
		WHERE organization_id = $1 AND is_active
		ORDER BY name`, orgID)
}

func (r *ComplianceRuleRepository) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*compliance.Rule, error) {
	return r.find(ctx, `
		SELECT `+ruleColumns+`
		FROM compliance_rules
		WHERE organization_id = $1
		ORDER BY name`, orgID)
}

func (r *ComplianceRuleRepository) find(ctx context.Context, query string, orgID uuid.UUID) ([]*compliance.Rule, error) {
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, errors.NewStorageError("querying compliance rules").WithCause(err)
	}
	defer rows.Close()

	var rules []*compliance.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, errors.NewStorageError("scanning rule row").WithCause(err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating rule rows").WithCause(err)
	}
	return rules, nil
}

// ComplianceEventRepository is the Postgres implementation of
// compliance.EventRepository.
type ComplianceEventRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewComplianceEventRepository(pool *pgxpool.Pool, logger *zap.Logger) *ComplianceEventRepository {
	return &ComplianceEventRepository{pool: pool, logger: logger}
}

// Upsert writes the event atomically keyed by (rule_id, entity_id). The
// unique constraint makes concurrent evaluation runs converge on one row;
// xmax = 0 distinguishes a fresh insert from a replaced row.
func (r *ComplianceEventRepository) Upsert(ctx context.Context, event *compliance.Event) (compliance.UpsertResult, error) {
	query := `
		INSERT INTO compliance_events (
			id, organization_id, rule_id, entity_type, entity_id, status,
			due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (rule_id, entity_id) DO UPDATE SET
			status = EXCLUDED.status,
			due_date = EXCLUDED.due_date,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		event.ID, event.OrganizationID, event.RuleID, event.EntityType,
		event.EntityID, event.Status, event.DueDate, event.CreatedAt,
		event.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return 0, errors.NewStorageError("upserting compliance event").WithCause(err)
	}
	if inserted {
		return compliance.UpsertCreated, nil
	}
	return compliance.UpsertUpdated, nil
}

func (r *ComplianceEventRepository) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*compliance.Event, error) {
	query := `
		SELECT id, organization_id, rule_id, entity_type, entity_id, status,
			due_date, created_at, updated_at
		FROM compliance_events
		WHERE organization_id = $1
		ORDER BY due_date`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, errors.NewStorageError("querying compliance events").WithCause(err)
	}
	defer rows.Close()

	var events []*compliance.Event
	for rows.Next() {
		var e compliance.Event
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.RuleID, &e.EntityType,
			&e.EntityID, &e.Status, &e.DueDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, errors.NewStorageError("scanning event row").WithCause(err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating event rows").WithCause(err)
	}
	return events, nil
}

func (r *ComplianceEventRepository) CountByStatus(ctx context.Context, orgID uuid.UUID) (map[compliance.Status]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM compliance_events
		WHERE organization_id = $1
		GROUP BY status`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, errors.NewStorageError("counting compliance events").WithCause(err)
	}
	defer rows.Close()

	counts := make(map[compliance.Status]int)
	for rows.Next() {
		var status compliance.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.NewStorageError("scanning event counts").WithCause(err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating event counts").WithCause(err)
	}
	return counts, nil
}
