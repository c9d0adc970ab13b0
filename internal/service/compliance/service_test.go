package compliance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	compliancedomain "github.com/fleetworks/fleet-operations-backend/internal/domain/compliance"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/fleet"
	"github.com/fleetworks/fleet-operations-backend/internal/service/compliance"
)

type fakeRuleRepository struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*compliancedomain.Rule
}

func newFakeRuleRepository() *fakeRuleRepository {
	return &fakeRuleRepository{rules: make(map[uuid.UUID]*compliancedomain.Rule)}
}

func (f *fakeRuleRepository) Save(_ context.Context, rule *compliancedomain.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *rule
	f.rules[rule.ID] = &copied
	return nil
}

func (f *fakeRuleRepository) GetByID(_ context.Context, orgID, ruleID uuid.UUID) (*compliancedomain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[ruleID]
	if !ok || rule.OrganizationID != orgID {
		return nil, errors.NewNotFoundError("compliance rule")
	}
	copied := *rule
	return &copied, nil
}

func (f *fakeRuleRepository) FindActive(_ context.Context, orgID uuid.UUID) ([]*compliancedomain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*compliancedomain.Rule
	for _, rule := range f.rules {
		if rule.OrganizationID == orgID && rule.IsActive {
			copied := *rule
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeRuleRepository) FindByOrganization(_ context.Context, orgID uuid.UUID) ([]*compliancedomain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*compliancedomain.Rule
	for _, rule := range f.rules {
		if rule.OrganizationID == orgID {
			copied := *rule
			out = append(out, &copied)
		}
	}
	return out, nil
}

type eventKey struct {
	ruleID   uuid.UUID
	entityID uuid.UUID
}

type fakeEventRepository struct {
	mu     sync.Mutex
	events map[eventKey]*compliancedomain.Event
}

func newFakeEventRepository() *fakeEventRepository {
	return &fakeEventRepository{events: make(map[eventKey]*compliancedomain.Event)}
}

func (f *fakeEventRepository) Upsert(_ context.Context, event *compliancedomain.Event) (compliancedomain.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := eventKey{ruleID: event.RuleID, entityID: event.EntityID}
	if existing, ok := f.events[key]; ok {
		existing.Status = event.Status
		existing.DueDate = event.DueDate
		existing.UpdatedAt = event.UpdatedAt
		return compliancedomain.UpsertUpdated, nil
	}
	copied := *event
	f.events[key] = &copied
	return compliancedomain.UpsertCreated, nil
}

func (f *fakeEventRepository) FindByOrganization(_ context.Context, orgID uuid.UUID) ([]*compliancedomain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*compliancedomain.Event
	for _, event := range f.events {
		if event.OrganizationID == orgID {
			copied := *event
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeEventRepository) CountByStatus(_ context.Context, orgID uuid.UUID) (map[compliancedomain.Status]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[compliancedomain.Status]int)
	for _, event := range f.events {
		if event.OrganizationID == orgID {
			counts[event.Status]++
		}
	}
	return counts, nil
}

type fakeEntitySource struct {
	vehicles []*fleet.Vehicle
	drivers  []*fleet.Driver
}

func (f *fakeEntitySource) VehiclesByScope(_ context.Context, filter auth.ScopeFilter) ([]*fleet.Vehicle, error) {
	var out []*fleet.Vehicle
	for _, v := range f.vehicles {
		if v.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.HasDepartment() && v.Department != filter.Department {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEntitySource) DriversByScope(_ context.Context, filter auth.ScopeFilter) ([]*fleet.Driver, error) {
	var out []*fleet.Driver
	for _, d := range f.drivers {
		if d.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.HasDepartment() && d.Department != filter.Department {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type noopRecorder struct{}

func (noopRecorder) RecordCreate(context.Context, *uuid.UUID, string, uuid.UUID, map[string]any, uuid.UUID, string) {
}
func (noopRecorder) RecordUpdate(context.Context, *uuid.UUID, string, uuid.UUID, map[string]any, map[string]any, uuid.UUID, string) {
}

type emptyDepartments struct{}

func (emptyDepartments) DepartmentCode(context.Context, uuid.UUID, uuid.UUID) (string, error) {
	return "", errors.NewNotFoundError("department")
}

func newTestService(rules *fakeRuleRepository, events *fakeEventRepository, entities *fakeEntitySource) *compliance.Service {
	return compliance.NewService(
		zap.NewNop(),
		rules,
		events,
		entities,
		auth.NewScopeResolver(emptyDepartments{}),
		noopRecorder{},
	)
}

func officerContext(orgID uuid.UUID) context.Context {
	return auth.ContextWithPrincipal(context.Background(), auth.Principal{
		UserID:         uuid.New(),
		OrganizationID: &orgID,
		Role:           auth.RoleComplianceOfficer,
	})
}

func TestEvaluateOrganization(t *testing.T) {
	orgID := uuid.New()
	rules := newFakeRuleRepository()
	events := newFakeEventRepository()

	in15 := time.Now().UTC().AddDate(0, 0, 15)
	in90 := time.Now().UTC().AddDate(0, 0, 90)
	past := time.Now().UTC().AddDate(0, 0, -10)

	healthy := fleet.NewVehicle(orgID, "VEH-001", "1HGBH41JXMN109186", "FLEET_OPS")
	healthy.InsuranceExpiration = &in90
	expiring := fleet.NewVehicle(orgID, "VEH-002", "2HGBH41JXMN109187", "FLEET_OPS")
	expiring.InsuranceExpiration = &in15
	lapsed := fleet.NewVehicle(orgID, "VEH-003", "3HGBH41JXMN109188", "PARKS_REC")
	lapsed.InsuranceExpiration = &past
	undated := fleet.NewVehicle(orgID, "VEH-004", "4HGBH41JXMN109189", "PARKS_REC")

	entities := &fakeEntitySource{vehicles: []*fleet.Vehicle{healthy, expiring, lapsed, undated}}
	service := newTestService(rules, events, entities)

	rule := compliancedomain.NewRule(orgID, "Insurance Expiration", fleet.EntityTypeVehicle,
		fleet.VehicleFieldInsuranceExpiration, 30, 7, uuid.New())
	require.NoError(t, rules.Save(context.Background(), rule))

	result, err := service.EvaluateOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.EventsCreated, "undated vehicle must be skipped, not recorded as OK")
	assert.Equal(t, 0, result.EventsUpdated)
	assert.Empty(t, result.RuleErrors)

	stored, err := events.FindByOrganization(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	byEntity := make(map[uuid.UUID]compliancedomain.Status, len(stored))
	for _, event := range stored {
		byEntity[event.EntityID] = event.Status
	}
	assert.Equal(t, compliancedomain.StatusOK, byEntity[healthy.ID])
	assert.Equal(t, compliancedomain.StatusWarning, byEntity[expiring.ID])
	assert.Equal(t, compliancedomain.StatusOverdue, byEntity[lapsed.ID])
}

func TestEvaluateIsIdempotent(t *testing.T) {
	orgID := uuid.New()
	rules := newFakeRuleRepository()
	events := newFakeEventRepository()

	due := time.Now().UTC().AddDate(0, 0, 20)
	driver := fleet.NewDriver(orgID, "EMP-100", "Jordan Smith", "WATER_MGMT")
	driver.CDLExpiration = &due

	entities := &fakeEntitySource{drivers: []*fleet.Driver{driver}}
	service := newTestService(rules, events, entities)

	rule := compliancedomain.NewRule(orgID, "CDL Expiration", fleet.EntityTypeDriver,
		fleet.DriverFieldCDLExpiration, 60, 30, uuid.New())
	require.NoError(t, rules.Save(context.Background(), rule))

	first, err := service.EvaluateOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EventsCreated)

	second, err := service.EvaluateOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EventsCreated, "re-run over unchanged data must create nothing")
	assert.Equal(t, 1, second.EventsUpdated)

	stored, err := events.FindByOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "the (rule, entity) pair must stay unique")
	assert.Equal(t, compliancedomain.StatusCritical, stored[0].Status)
}

func TestEvaluateSurfacesBadRuleWithoutSuppressingOthers(t *testing.T) {
	orgID := uuid.New()
	rules := newFakeRuleRepository()
	events := newFakeEventRepository()

	due := time.Now().UTC().AddDate(0, 0, 200)
	vehicle := fleet.NewVehicle(orgID, "VEH-001", "1HGBH41JXMN109186", "FLEET_OPS")
	vehicle.RegistrationExpiration = &due

	entities := &fakeEntitySource{vehicles: []*fleet.Vehicle{vehicle}}
	service := newTestService(rules, events, entities)

	good := compliancedomain.NewRule(orgID, "Registration Expiration", fleet.EntityTypeVehicle,
		fleet.VehicleFieldRegistrationExpiration, 30, 7, uuid.New())
	bad := compliancedomain.NewRule(orgID, "Phantom Field", fleet.EntityTypeVehicle,
		"warrantyExpiration", 30, 7, uuid.New())
	require.NoError(t, rules.Save(context.Background(), good))
	require.NoError(t, rules.Save(context.Background(), bad))

	result, err := service.EvaluateOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsCreated, "the good rule still ran")
	require.Len(t, result.RuleErrors, 1)
	assert.Equal(t, bad.ID, result.RuleErrors[0].RuleID)
	assert.True(t, errors.IsType(result.RuleErrors[0].Err, errors.ErrorTypeConfiguration))
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	orgID := uuid.New()
	rules := newFakeRuleRepository()
	events := newFakeEventRepository()

	due := time.Now().UTC().AddDate(0, 0, 5)
	vehicle := fleet.NewVehicle(orgID, "VEH-001", "1HGBH41JXMN109186", "FLEET_OPS")
	vehicle.InsuranceExpiration = &due

	entities := &fakeEntitySource{vehicles: []*fleet.Vehicle{vehicle}}
	service := newTestService(rules, events, entities)

	rule := compliancedomain.NewRule(orgID, "Insurance Expiration", fleet.EntityTypeVehicle,
		fleet.VehicleFieldInsuranceExpiration, 30, 7, uuid.New())
	rule.Deactivate()
	require.NoError(t, rules.Save(context.Background(), rule))

	result, err := service.EvaluateOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Zero(t, result.EventsCreated)
	assert.Zero(t, result.EventsUpdated)
}

func TestEvaluateAuthorization(t *testing.T) {
	orgID := uuid.New()
	service := newTestService(newFakeRuleRepository(), newFakeEventRepository(), &fakeEntitySource{})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := service.Evaluate(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthenticated))
	})

	t.Run("read-only caller cannot trigger evaluation", func(t *testing.T) {
		ctx := auth.ContextWithPrincipal(context.Background(), auth.Principal{
			UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleReadOnly,
		})
		_, err := service.Evaluate(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
	})

	t.Run("caller without organization fails with missing tenant", func(t *testing.T) {
		ctx := auth.ContextWithPrincipal(context.Background(), auth.Principal{
			UserID: uuid.New(), Role: auth.RoleComplianceOfficer,
		})
		_, err := service.Evaluate(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMissingTenant))
	})
}

func TestGetStats(t *testing.T) {
	orgID := uuid.New()
	rules := newFakeRuleRepository()
	events := newFakeEventRepository()

	now := time.Now().UTC()
	ok1 := now.AddDate(0, 0, 120)
	ok2 := now.AddDate(0, 0, 95)
	warning := now.AddDate(0, 0, 20)
	overdue := now.AddDate(0, 0, -3)

	v1 := fleet.NewVehicle(orgID, "VEH-001", "1HGBH41JXMN109186", "FLEET_OPS")
	v1.InsuranceExpiration = &ok1
	v2 := fleet.NewVehicle(orgID, "VEH-002", "2HGBH41JXMN109187", "FLEET_OPS")
	v2.InsuranceExpiration = &ok2
	v3 := fleet.NewVehicle(orgID, "VEH-003", "3HGBH41JXMN109188", "FLEET_OPS")
	v3.InsuranceExpiration = &warning
	v4 := fleet.NewVehicle(orgID, "VEH-004", "4HGBH41JXMN109189", "FLEET_OPS")
	v4.InsuranceExpiration = &overdue

	entities := &fakeEntitySource{vehicles: []*fleet.Vehicle{v1, v2, v3, v4}}
	service := newTestService(rules, events, entities)

	rule := compliancedomain.NewRule(orgID, "Insurance Expiration", fleet.EntityTypeVehicle,
		fleet.VehicleFieldInsuranceExpiration, 30, 7, uuid.New())
	require.NoError(t, rules.Save(context.Background(), rule))

	_, err := service.EvaluateOrganization(context.Background(), orgID)
	require.NoError(t, err)

	stats, err := service.GetStats(officerContext(orgID))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalEvents)
	assert.Equal(t, 2, stats.OKEvents)
	assert.Equal(t, 1, stats.WarningEvents)
	assert.Equal(t, 1, stats.OverdueEvents)
	assert.Equal(t, 2, stats.OpenIssues)
	assert.Equal(t, 1, stats.ActiveRules)
	assert.Equal(t, 50, stats.CompliancePercentage)
}

func TestGetStatsEmptyOrganizationIsFullyCompliant(t *testing.T) {
	orgID := uuid.New()
	service := newTestService(newFakeRuleRepository(), newFakeEventRepository(), &fakeEntitySource{})

	stats, err := service.GetStats(officerContext(orgID))
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
	assert.Equal(t, 100, stats.CompliancePercentage)
}

func TestCreateRuleValidation(t *testing.T) {
	orgID := uuid.New()
	rules := newFakeRuleRepository()
	service := newTestService(rules, newFakeEventRepository(), &fakeEntitySource{})
	ctx := officerContext(orgID)

	t.Run("valid rule is persisted for the caller's org", func(t *testing.T) {
		rule, err := service.CreateRule(ctx, compliance.RuleInput{
			Name:               "Medical Certificate Expiration",
			EntityType:         fleet.EntityTypeDriver,
			FieldToCheck:       fleet.DriverFieldMedicalCertExpiration,
			WarningDaysBefore:  30,
			CriticalDaysBefore: 14,
		})
		require.NoError(t, err)
		assert.Equal(t, orgID, rule.OrganizationID)
		assert.True(t, rule.IsActive)
	})

	t.Run("critical threshold above warning is rejected", func(t *testing.T) {
		_, err := service.CreateRule(ctx, compliance.RuleInput{
			Name:               "Inverted Thresholds",
			EntityType:         fleet.EntityTypeDriver,
			FieldToCheck:       fleet.DriverFieldCDLExpiration,
			WarningDaysBefore:  7,
			CriticalDaysBefore: 30,
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("unknown field is a configuration error", func(t *testing.T) {
		_, err := service.CreateRule(ctx, compliance.RuleInput{
			Name:               "Phantom",
			EntityType:         fleet.EntityTypeVehicle,
			FieldToCheck:       "warrantyExpiration",
			WarningDaysBefore:  30,
			CriticalDaysBefore: 7,
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
	})

	t.Run("driver role cannot create rules", func(t *testing.T) {
		driverCtx := auth.ContextWithPrincipal(context.Background(), auth.Principal{
			UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleDriver,
		})
		_, err := service.CreateRule(driverCtx, compliance.RuleInput{
			Name:               "CDL Expiration",
			EntityType:         fleet.EntityTypeDriver,
			FieldToCheck:       fleet.DriverFieldCDLExpiration,
			WarningDaysBefore:  60,
			CriticalDaysBefore: 30,
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
	})
}
