package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/compliance"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/risk"
)

// ComplianceStatsSource provides the compliance percentage input.
type ComplianceStatsSource interface {
	StatsForOrganization(ctx context.Context, orgID uuid.UUID) (*compliance.Stats, error)
}

// MaintenanceSource aggregates preventive-maintenance counts.
type MaintenanceSource interface {
	MaintenanceStats(ctx context.Context, orgID uuid.UUID) (risk.MaintenanceStats, error)
}

// IncidentSource aggregates recent incident counts.
type IncidentSource interface {
	IncidentStats(ctx context.Context, orgID uuid.UUID) (risk.IncidentStats, error)
}

// Cache holds computed scores for a short TTL. The score is derived from
// live aggregates, so staleness is bounded by the TTL and a miss is never
// an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service computes the fleet risk score on demand. Scores are never
// persisted; the short cache only absorbs dashboard refresh bursts.
type Service struct {
	logger      *zap.Logger
	stats       ComplianceStatsSource
	maintenance MaintenanceSource
	incidents   IncidentSource
	cache       Cache
	policy      risk.Policy
	ttl         time.Duration
}

func NewService(
	logger *zap.Logger,
	stats ComplianceStatsSource,
	maintenance MaintenanceSource,
	incidents IncidentSource,
	cache Cache,
	policy risk.Policy,
	ttl time.Duration,
) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		logger:      logger,
		stats:       stats,
		maintenance: maintenance,
		incidents:   incidents,
		cache:       cache,
		policy:      policy,
		ttl:         ttl,
	}
}

// FleetRiskScore returns the composite score for the caller's
// organization. Requires reports:read.
func (s *Service) FleetRiskScore(ctx context.Context) (*risk.Score, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermReportsRead); err != nil {
		return nil, err
	}
	if principal.OrganizationID == nil {
		return nil, errors.NewMissingTenantError()
	}
	return s.ScoreForOrganization(ctx, *principal.OrganizationID)
}

// ScoreForOrganization computes the score for one tenant, consulting the
// cache first. Cache failures degrade to recomputation.
func (s *Service) ScoreForOrganization(ctx context.Context, orgID uuid.UUID) (*risk.Score, error) {
	key := cacheKey(orgID)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != nil {
			var cached risk.Score
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	stats, err := s.stats.StatsForOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	maintenance, err := s.maintenance.MaintenanceStats(ctx, orgID)
	if err != nil {
		return nil, errors.NewStorageError("aggregating maintenance stats").WithCause(err)
	}
	incidents, err := s.incidents.IncidentStats(ctx, orgID)
	if err != nil {
		return nil, errors.NewStorageError("aggregating incident stats").WithCause(err)
	}

	score := risk.Compute(stats.CompliancePercentage, maintenance, incidents, s.policy)

	if s.cache != nil {
		raw, err := json.Marshal(score)
		if err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
				s.logger.Warn("caching risk score failed",
					zap.String("org_id", orgID.String()),
					zap.Error(err))
			}
		}
	}

	return &score, nil
}

func cacheKey(orgID uuid.UUID) string {
	return fmt.Sprintf("risk:score:%s", orgID)
}
