package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ComplianceMetrics instruments scheduled and manual evaluation runs.
// Instruments come from the global meter provider, so they are no-ops
// unless one is installed.
type ComplianceMetrics struct {
	runs          metric.Int64Counter
	runDuration   metric.Float64Histogram
	eventsWritten metric.Int64Counter
	ruleErrors    metric.Int64Counter
}

func NewComplianceMetrics() (*ComplianceMetrics, error) {
	meter := otel.Meter("fleet-operations/compliance")

	runs, err := meter.Int64Counter("compliance.evaluation.runs",
		metric.WithDescription("Completed evaluation runs"))
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}
	runDuration, err := meter.Float64Histogram("compliance.evaluation.duration",
		metric.WithDescription("Evaluation run duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	eventsWritten, err := meter.Int64Counter("compliance.events.written",
		metric.WithDescription("Compliance events created or updated"))
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}
	ruleErrors, err := meter.Int64Counter("compliance.rule.errors",
		metric.WithDescription("Rules skipped for configuration errors"))
	if err != nil {
		return nil, fmt.Errorf("creating rule errors counter: %w", err)
	}

	return &ComplianceMetrics{
		runs:          runs,
		runDuration:   runDuration,
		eventsWritten: eventsWritten,
		ruleErrors:    ruleErrors,
	}, nil
}

// RecordRun records the outcome of one per-organization evaluation run.
func (m *ComplianceMetrics) RecordRun(ctx context.Context, orgID string, duration time.Duration, created, updated, ruleErrors int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("org_id", orgID))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	m.eventsWritten.Add(ctx, int64(created),
		metric.WithAttributes(attribute.String("org_id", orgID), attribute.String("outcome", "created")))
	m.eventsWritten.Add(ctx, int64(updated),
		metric.WithAttributes(attribute.String("org_id", orgID), attribute.String("outcome", "updated")))
	m.ruleErrors.Add(ctx, int64(ruleErrors), attrs)
}
