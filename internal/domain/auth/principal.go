package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

// Principal is the authenticated identity an operation runs on behalf of.
// It is derived per request by the authentication collaborator and never
// persisted by this core.
type Principal struct {
	UserID         uuid.UUID  `json:"user_id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Role           Role       `json:"role"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
}

type principalContextKey struct{}

type clientIPContextKey struct{}

// ContextWithClientIP records the request's remote address so audit
// entries can attribute mutations to a source.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the recorded remote address, or empty.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// RequireAuth returns the current principal or fails when none is present.
// No scoped operation may proceed unauthenticated.
func RequireAuth(ctx context.Context) (Principal, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, errors.NewUnauthenticatedError()
	}
	return principal, nil
}

// RequireRole returns the current principal when its role is in the allowed
// set. The check runs before any data access; failure is terminal for the
// request.
func RequireRole(ctx context.Context, allowed ...Role) (Principal, error) {
	principal, err := RequireAuth(ctx)
	if err != nil {
		return Principal{}, err
	}
	for _, role := range allowed {
		if principal.Role == role {
			return principal, nil
		}
	}
	return Principal{}, errors.NewAuthorizationError()
}
