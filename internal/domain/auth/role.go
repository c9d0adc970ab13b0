package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of roles a principal can hold. A principal holds
// exactly one role; privilege is defined solely by the permission registry,
// not by any ordering between roles.
type Role int

const (
	RoleSuperAdmin Role = iota
	RoleOrgAdmin
	RoleFleetManager
	RoleDeptManager
	RoleComplianceOfficer
	RoleReadOnly
	RoleDriver
)

// Roles lists every defined role, in declaration order.
var Roles = []Role{
	RoleSuperAdmin,
	RoleOrgAdmin,
	RoleFleetManager,
	RoleDeptManager,
	RoleComplianceOfficer,
	RoleReadOnly,
	RoleDriver,
}

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleOrgAdmin:
		return "org_admin"
	case RoleFleetManager:
		return "fleet_manager"
	case RoleDeptManager:
		return "dept_manager"
	case RoleComplianceOfficer:
		return "compliance_officer"
	case RoleReadOnly:
		return "read_only"
	case RoleDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	return r >= RoleSuperAdmin && r <= RoleDriver
}

// IsDepartmentLimited reports whether entities visible to this role are
// restricted to the principal's own department.
func (r Role) IsDepartmentLimited() bool {
	return r == RoleDeptManager
}

// ParseRole converts a stored role name back into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "super_admin":
		return RoleSuperAdmin, nil
	case "org_admin":
		return RoleOrgAdmin, nil
	case "fleet_manager":
		return RoleFleetManager, nil
	case "dept_manager":
		return RoleDeptManager, nil
	case "compliance_officer":
		return RoleComplianceOfficer, nil
	case "read_only":
		return RoleReadOnly, nil
	case "driver":
		return RoleDriver, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
