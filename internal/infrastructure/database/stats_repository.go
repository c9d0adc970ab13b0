package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/risk"
)

// StatsRepository aggregates the maintenance and incident inputs to the
// risk score. Counts come straight from SQL; no rows are materialized.
type StatsRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStatsRepository(pool *pgxpool.Pool, logger *zap.Logger) *StatsRepository {
	return &StatsRepository{pool: pool, logger: logger}
}

// MaintenanceStats counts overdue and upcoming preventive-maintenance
// plans for an organization.
func (r *StatsRepository) MaintenanceStats(ctx context.Context, orgID uuid.UUID) (risk.MaintenanceStats, error) {
	var stats risk.MaintenanceStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE next_due_date < NOW()),
			COUNT(*) FILTER (WHERE next_due_date >= NOW()
				AND next_due_date < NOW() + INTERVAL '30 days')
		FROM maintenance_plans
		WHERE organization_id = $1 AND is_active`,
		orgID).Scan(&stats.OverdueCount, &stats.Upcoming30Days)
	if err != nil {
		return risk.MaintenanceStats{}, errors.NewStorageError("aggregating maintenance plans").WithCause(err)
	}
	return stats, nil
}

// IncidentStats counts incidents reported in the last 30 days.
func (r *StatsRepository) IncidentStats(ctx context.Context, orgID uuid.UUID) (risk.IncidentStats, error) {
	var stats risk.IncidentStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM incidents
		WHERE organization_id = $1 AND occurred_at >= NOW() - INTERVAL '30 days'`,
		orgID).Scan(&stats.Last30Days)
	if err != nil {
		return risk.IncidentStats{}, errors.NewStorageError("aggregating incidents").WithCause(err)
	}
	return stats, nil
}
