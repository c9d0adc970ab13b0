package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

type staticDepartmentResolver struct {
	codes map[uuid.UUID]string
}

func (r *staticDepartmentResolver) DepartmentCode(_ context.Context, _, departmentID uuid.UUID) (string, error) {
	code, ok := r.codes[departmentID]
	if !ok {
		return "", errors.NewNotFoundError("department")
	}
	return code, nil
}

func TestResolveScope(t *testing.T) {
	orgID := uuid.New()
	deptID := uuid.New()
	resolver := auth.NewScopeResolver(&staticDepartmentResolver{
		codes: map[uuid.UUID]string{deptID: "PARKS_REC"},
	})
	ctx := context.Background()

	t.Run("missing organization fails, never falls back to org-wide", func(t *testing.T) {
		principal := auth.Principal{UserID: uuid.New(), Role: auth.RoleFleetManager}

		_, err := resolver.ResolveScope(ctx, principal)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMissingTenant))
	})

	t.Run("org-scoped role pins only the organization", func(t *testing.T) {
		principal := auth.Principal{UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleFleetManager}

		filter, err := resolver.ResolveScope(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, orgID, filter.OrganizationID)
		assert.False(t, filter.HasDepartment())
	})

	t.Run("department manager is pinned to the resolved department code", func(t *testing.T) {
		principal := auth.Principal{
			UserID:         uuid.New(),
			OrganizationID: &orgID,
			Role:           auth.RoleDeptManager,
			DepartmentID:   &deptID,
		}

		filter, err := resolver.ResolveScope(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, orgID, filter.OrganizationID)
		assert.Equal(t, "PARKS_REC", filter.Department)
	})

	t.Run("department manager without a department is a configuration error", func(t *testing.T) {
		principal := auth.Principal{UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleDeptManager}

		_, err := resolver.ResolveScope(ctx, principal)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
	})

	t.Run("unresolvable department surfaces, not silently org-wide", func(t *testing.T) {
		unknown := uuid.New()
		principal := auth.Principal{
			UserID:         uuid.New(),
			OrganizationID: &orgID,
			Role:           auth.RoleDeptManager,
			DepartmentID:   &unknown,
		}

		_, err := resolver.ResolveScope(ctx, principal)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
	})

	t.Run("org scope ignores department limits for compliance runs", func(t *testing.T) {
		principal := auth.Principal{
			UserID:         uuid.New(),
			OrganizationID: &orgID,
			Role:           auth.RoleDeptManager,
			DepartmentID:   &deptID,
		}

		filter, err := resolver.OrgScope(principal)
		require.NoError(t, err)
		assert.Equal(t, orgID, filter.OrganizationID)
		assert.False(t, filter.HasDepartment())
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("fails without a principal", func(t *testing.T) {
		_, err := auth.RequireAuth(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthenticated))
	})

	t.Run("returns the attached principal", func(t *testing.T) {
		orgID := uuid.New()
		principal := auth.Principal{UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleOrgAdmin}
		ctx := auth.ContextWithPrincipal(context.Background(), principal)

		got, err := auth.RequireAuth(ctx)
		require.NoError(t, err)
		assert.Equal(t, principal, got)
	})
}

func TestRequireRole(t *testing.T) {
	orgID := uuid.New()
	principal := auth.Principal{UserID: uuid.New(), OrganizationID: &orgID, Role: auth.RoleComplianceOfficer}
	ctx := auth.ContextWithPrincipal(context.Background(), principal)

	t.Run("allows listed role", func(t *testing.T) {
		got, err := auth.RequireRole(ctx, auth.RoleOrgAdmin, auth.RoleComplianceOfficer)
		require.NoError(t, err)
		assert.Equal(t, principal, got)
	})

	t.Run("rejects unlisted role before any data access", func(t *testing.T) {
		_, err := auth.RequireRole(ctx, auth.RoleSuperAdmin)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
	})

	t.Run("unauthenticated beats authorization", func(t *testing.T) {
		_, err := auth.RequireRole(context.Background(), auth.RoleOrgAdmin)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthenticated))
	})
}
