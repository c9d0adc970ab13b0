package auth

import (
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

// Permission names a {resource}:{action} capability. Every permission a
// component checks must be granted to at least one role below, and the
// registry is the single point of truth: no call site carries its own
// role logic.
type Permission string

const (
	PermVehiclesRead   Permission = "vehicles:read"
	PermVehiclesCreate Permission = "vehicles:create"
	PermVehiclesUpdate Permission = "vehicles:update"
	PermVehiclesDelete Permission = "vehicles:delete"

	PermDriversRead   Permission = "drivers:read"
	PermDriversCreate Permission = "drivers:create"
	PermDriversUpdate Permission = "drivers:update"
	PermDriversDelete Permission = "drivers:delete"

	PermIncidentsRead   Permission = "incidents:read"
	PermIncidentsCreate Permission = "incidents:create"
	PermIncidentsUpdate Permission = "incidents:update"
	PermIncidentsDelete Permission = "incidents:delete"

	PermSurplusRead    Permission = "surplus:read"
	PermSurplusCreate  Permission = "surplus:create"
	PermSurplusApprove Permission = "surplus:approve"
	PermSurplusUpdate  Permission = "surplus:update"
	PermSurplusDelete  Permission = "surplus:delete"

	PermReportsRead   Permission = "reports:read"
	PermReportsExport Permission = "reports:export"

	PermComplianceRead   Permission = "compliance:read"
	PermComplianceManage Permission = "compliance:manage"

	PermAuditRead Permission = "audit:read"

	PermAdminAccess Permission = "admin:access"
)

// permissionSet is an immutable membership set built once at package init.
type permissionSet map[Permission]struct{}

func newPermissionSet(perms ...Permission) permissionSet {
	set := make(permissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

var allReads = []Permission{
	PermVehiclesRead,
	PermDriversRead,
	PermIncidentsRead,
	PermSurplusRead,
	PermReportsRead,
	PermComplianceRead,
}

// rolePermissions is the registry. Review grants per role as a whole, not
// per call site, when adding a resource or action.
var rolePermissions = map[Role]permissionSet{
	RoleSuperAdmin: newPermissionSet(
		PermVehiclesRead, PermVehiclesCreate, PermVehiclesUpdate, PermVehiclesDelete,
		PermDriversRead, PermDriversCreate, PermDriversUpdate, PermDriversDelete,
		PermIncidentsRead, PermIncidentsCreate, PermIncidentsUpdate, PermIncidentsDelete,
		PermSurplusRead, PermSurplusCreate, PermSurplusApprove, PermSurplusUpdate, PermSurplusDelete,
		PermReportsRead, PermReportsExport,
		PermComplianceRead, PermComplianceManage,
		PermAuditRead,
		PermAdminAccess,
	),
	RoleOrgAdmin: newPermissionSet(
		PermVehiclesRead, PermVehiclesCreate, PermVehiclesUpdate, PermVehiclesDelete,
		PermDriversRead, PermDriversCreate, PermDriversUpdate, PermDriversDelete,
		PermIncidentsRead, PermIncidentsCreate, PermIncidentsUpdate, PermIncidentsDelete,
		PermSurplusRead, PermSurplusCreate, PermSurplusApprove, PermSurplusUpdate, PermSurplusDelete,
		PermReportsRead, PermReportsExport,
		PermComplianceRead, PermComplianceManage,
		PermAuditRead,
		PermAdminAccess,
	),
	RoleFleetManager: newPermissionSet(
		PermVehiclesRead, PermVehiclesCreate, PermVehiclesUpdate, PermVehiclesDelete,
		PermDriversRead, PermDriversCreate, PermDriversUpdate, PermDriversDelete,
		PermIncidentsRead, PermIncidentsCreate, PermIncidentsUpdate, PermIncidentsDelete,
		PermSurplusRead, PermSurplusCreate, PermSurplusUpdate, PermSurplusDelete,
		PermReportsRead, PermReportsExport,
		PermComplianceRead, PermComplianceManage,
	),
	RoleDeptManager: newPermissionSet(
		PermVehiclesRead, PermVehiclesUpdate,
		PermDriversRead, PermDriversUpdate,
		PermIncidentsRead, PermIncidentsCreate,
		PermSurplusRead, PermSurplusApprove,
		PermReportsRead,
		PermComplianceRead,
	),
	RoleComplianceOfficer: newPermissionSet(
		append(allReads, PermComplianceManage, PermAuditRead)...,
	),
	RoleReadOnly: newPermissionSet(allReads...),
	RoleDriver: newPermissionSet(
		PermVehiclesRead,
		PermIncidentsRead, PermIncidentsCreate,
	),
}

// HasPermission reports whether role may perform the named action. It is
// total: unknown roles and unknown permissions simply return false.
func HasPermission(role Role, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// RequirePermission fails with an authorization error exactly when
// HasPermission is false.
func RequirePermission(role Role, perm Permission) error {
	if !HasPermission(role, perm) {
		return errors.NewAuthorizationError()
	}
	return nil
}
