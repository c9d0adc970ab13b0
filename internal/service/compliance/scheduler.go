package compliance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/infrastructure/telemetry"
)

// Scheduler re-runs compliance evaluation for every active tenant on a
// cron spec. Scheduled runs race harmlessly with manual triggers because
// the event upsert is atomic per (rule, entity) key.
type Scheduler struct {
	logger  *zap.Logger
	service *Service
	orgs    OrganizationSource
	metrics *telemetry.ComplianceMetrics
	cron    *cron.Cron
	spec    string
	timeout time.Duration
}

func NewScheduler(logger *zap.Logger, service *Service, orgs OrganizationSource, metrics *telemetry.ComplianceMetrics, spec string, timeout time.Duration) *Scheduler {
	if spec == "" {
		spec = "@hourly"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		logger:  logger,
		service: service,
		orgs:    orgs,
		metrics: metrics,
		cron:    cron.New(),
		spec:    spec,
		timeout: timeout,
	}
}

// Start registers the evaluation job and begins the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.runAll)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("compliance scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("compliance scheduler stopped")
}

func (s *Scheduler) runAll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	orgIDs, err := s.orgs.ActiveOrganizationIDs(ctx)
	if err != nil {
		s.logger.Error("listing organizations for scheduled evaluation", zap.Error(err))
		return
	}

	for _, orgID := range orgIDs {
		start := time.Now()
		result, err := s.service.EvaluateOrganization(ctx, orgID)
		if err != nil {
			s.logger.Error("scheduled compliance evaluation failed",
				zap.String("org_id", orgID.String()),
				zap.Error(err))
			continue
		}
		s.metrics.RecordRun(ctx, orgID.String(), time.Since(start),
			result.EventsCreated, result.EventsUpdated, len(result.RuleErrors))
		for _, ruleErr := range result.RuleErrors {
			s.logger.Warn("rule skipped during scheduled evaluation",
				zap.String("org_id", orgID.String()),
				zap.String("rule_id", ruleErr.RuleID.String()),
				zap.String("rule_name", ruleErr.RuleName),
				zap.String("reason", ruleErr.Message))
		}
	}
}
