package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/infrastructure/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	verifier := auth.NewVerifier("test-secret", time.Hour)

	orgID := uuid.New()
	deptID := uuid.New()
	principal := domainauth.Principal{
		UserID:         uuid.New(),
		OrganizationID: &orgID,
		Role:           domainauth.RoleDeptManager,
		DepartmentID:   &deptID,
	}

	token, err := verifier.IssueToken(principal)
	require.NoError(t, err)

	parsed, err := verifier.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID, parsed.UserID)
	assert.Equal(t, domainauth.RoleDeptManager, parsed.Role)
	require.NotNil(t, parsed.OrganizationID)
	assert.Equal(t, orgID, *parsed.OrganizationID)
	require.NotNil(t, parsed.DepartmentID)
	assert.Equal(t, deptID, *parsed.DepartmentID)
}

func TestTokenWithoutTenant(t *testing.T) {
	verifier := auth.NewVerifier("test-secret", time.Hour)

	token, err := verifier.IssueToken(domainauth.Principal{
		UserID: uuid.New(),
		Role:   domainauth.RoleSuperAdmin,
	})
	require.NoError(t, err)

	parsed, err := verifier.VerifyToken(token)
	require.NoError(t, err)
	assert.Nil(t, parsed.OrganizationID)
	assert.Nil(t, parsed.DepartmentID)
}

func TestVerifyTokenFailures(t *testing.T) {
	verifier := auth.NewVerifier("test-secret", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		_, err := verifier.VerifyToken("not-a-token")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthenticated))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.NewVerifier("other-secret", time.Hour)
		token, err := other.IssueToken(domainauth.Principal{
			UserID: uuid.New(), Role: domainauth.RoleReadOnly,
		})
		require.NoError(t, err)

		_, err = verifier.VerifyToken(token)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthenticated))
	})

	t.Run("expired token", func(t *testing.T) {
		short := auth.NewVerifier("test-secret", time.Nanosecond)
		token, err := short.IssueToken(domainauth.Principal{
			UserID: uuid.New(), Role: domainauth.RoleReadOnly,
		})
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		_, err = verifier.VerifyToken(token)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthenticated))
	})
}
