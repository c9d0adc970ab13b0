package audit_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	auditdomain "github.com/fleetworks/fleet-operations-backend/internal/domain/audit"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/service/audit"
)

type fakeEntryRepository struct {
	mu        sync.Mutex
	entries   []*auditdomain.Entry
	insertErr error
}

func (f *fakeEntryRepository) Insert(_ context.Context, entry *auditdomain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeEntryRepository) ListRecent(_ context.Context, orgID uuid.UUID, limit int) ([]*auditdomain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auditdomain.Entry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].OrganizationID != nil && *f.entries[i].OrganizationID == orgID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeEntryRepository) ListByEntity(_ context.Context, orgID uuid.UUID, entityType string, entityID uuid.UUID) ([]*auditdomain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auditdomain.Entry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.OrganizationID != nil && *e.OrganizationID == orgID && e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRecordUpdateComputesDiff(t *testing.T) {
	repo := &fakeEntryRepository{}
	recorder := audit.NewRecorder(zap.NewNop(), repo)

	orgID := uuid.New()
	entityID := uuid.New()
	actorID := uuid.New()

	before := map[string]any{"status": "Active", "phone": "555-1"}
	after := map[string]any{"status": "Suspended", "phone": "555-1"}

	recorder.RecordUpdate(context.Background(), &orgID, "driver", entityID, before, after, actorID, "10.1.2.3")

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, auditdomain.ActionUpdate, entry.Action)
	assert.Equal(t, actorID, entry.ActorUserID)
	assert.Equal(t, "10.1.2.3", entry.IPAddress)
	require.Len(t, entry.ChangedFields, 1)
	assert.Equal(t, auditdomain.FieldChange{From: "Active", To: "Suspended"}, entry.ChangedFields["status"])
	assert.Equal(t, before, entry.BeforeSnapshot)
	assert.Equal(t, after, entry.AfterSnapshot)
}

func TestRecordSwallowsStorageFailures(t *testing.T) {
	repo := &fakeEntryRepository{insertErr: errors.NewStorageError("connection reset")}
	recorder := audit.NewRecorder(zap.NewNop(), repo)

	orgID := uuid.New()

	// Must not panic or surface the failure; the business mutation already
	// committed and cannot be held hostage by observability.
	recorder.RecordCreate(context.Background(), &orgID, "vehicle", uuid.New(), map[string]any{"vin": "X"}, uuid.New(), "")
	recorder.RecordDelete(context.Background(), &orgID, "vehicle", uuid.New(), map[string]any{"vin": "X"}, uuid.New(), "")

	assert.Empty(t, repo.entries)
}

func TestRecentActivityRequiresPermission(t *testing.T) {
	repo := &fakeEntryRepository{}
	recorder := audit.NewRecorder(zap.NewNop(), repo)
	orgID := uuid.New()

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := recorder.RecentActivity(context.Background(), 10)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthenticated))
	})

	t.Run("role without audit:read", func(t *testing.T) {
		ctx := auth.ContextWithPrincipal(context.Background(), auth.Principal{
			UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleDriver,
		})
		_, err := recorder.RecentActivity(ctx, 10)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
	})

	t.Run("compliance officer reads own org only", func(t *testing.T) {
		otherOrg := uuid.New()
		recorder.RecordCreate(context.Background(), &orgID, "vehicle", uuid.New(), nil, uuid.New(), "")
		recorder.RecordCreate(context.Background(), &otherOrg, "vehicle", uuid.New(), nil, uuid.New(), "")

		ctx := auth.ContextWithPrincipal(context.Background(), auth.Principal{
			UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleComplianceOfficer,
		})
		entries, err := recorder.RecentActivity(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, orgID, *entries[0].OrganizationID)
	})
}
