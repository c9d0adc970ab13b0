package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

// ScopeFilter is the predicate every entity read and write must satisfy.
// OrganizationID is always pinned to the principal's tenant; Department is
// set only for department-limited roles and holds the department's
// denormalized code, since entities store the code rather than the id.
type ScopeFilter struct {
	OrganizationID uuid.UUID
	Department     string
}

// HasDepartment reports whether the filter restricts by department.
func (f ScopeFilter) HasDepartment() bool {
	return f.Department != ""
}

// DepartmentResolver maps a department id to its canonical code. Entities
// carry the code, not the id, so department-limited scoping cannot be
// applied until the id is resolved.
type DepartmentResolver interface {
	DepartmentCode(ctx context.Context, orgID, departmentID uuid.UUID) (string, error)
}

// ScopeResolver turns principals into scope filters.
type ScopeResolver struct {
	departments DepartmentResolver
}

func NewScopeResolver(departments DepartmentResolver) *ScopeResolver {
	return &ScopeResolver{departments: departments}
}

// ResolveScope derives the tenancy filter for a principal. It fails with a
// missing-tenant error when the principal has no organization; a failure to
// resolve a department-limited principal's department is a configuration
// error, never a silent fallback to org-wide access.
func (r *ScopeResolver) ResolveScope(ctx context.Context, principal Principal) (ScopeFilter, error) {
	if principal.OrganizationID == nil {
		return ScopeFilter{}, errors.NewMissingTenantError()
	}

	filter := ScopeFilter{OrganizationID: *principal.OrganizationID}

	if principal.Role.IsDepartmentLimited() {
		if principal.DepartmentID == nil {
			return ScopeFilter{}, errors.NewConfigurationError("MISSING_DEPARTMENT",
				"department-limited role has no department assigned")
		}
		code, err := r.departments.DepartmentCode(ctx, *principal.OrganizationID, *principal.DepartmentID)
		if err != nil {
			return ScopeFilter{}, errors.NewConfigurationError("DEPARTMENT_RESOLUTION_FAILED",
				"could not resolve department for scoping").WithCause(err)
		}
		filter.Department = code
	}

	return filter, nil
}

// OrgScope returns the organization-wide filter for a principal, ignoring
// department limits. Compliance evaluation uses this: it runs on behalf of
// compliance officers who see across departments.
func (r *ScopeResolver) OrgScope(principal Principal) (ScopeFilter, error) {
	if principal.OrganizationID == nil {
		return ScopeFilter{}, errors.NewMissingTenantError()
	}
	return ScopeFilter{OrganizationID: *principal.OrganizationID}, nil
}
