package permission

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleManager    Role = "MANAGER"
	RoleAgent      Role = "AGENT"
	// RoleNone is the target role of a task that has no assignee.
	RoleNone Role = ""
)

var ErrInvalidRole = errors.New("invalid role: must be SUPERADMIN, MANAGER or AGENT")

// Roles возвращает роли, которые можно назначить пользователю.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleManager, RoleAgent}
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleManager, RoleAgent:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return RoleNone, ErrInvalidRole
	}
	return role, nil
}

type Permission string

const (
	PermFull        Permission = "FULL_PERMISSIONS"
	PermCreate      Permission = "CREATE"
	PermViewDetails Permission = "VIEW_DETAILS"
	PermViewList    Permission = "VIEW_LIST"
	PermDelete      Permission = "DELETE"
	PermEdit        Permission = "EDIT"
	PermViewRoles   Permission = "VIEW_ROLES"
)

// Coarse route-level grants. Record-level decisions go through the rule table.
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {PermFull},
	RoleManager:    {PermCreate, PermViewDetails, PermDelete, PermViewList},
	RoleAgent:      {PermViewDetails},
}

func PermissionsOf(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether role holds perm. FULL_PERMISSIONS implies every permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == PermFull || p == perm {
			return true
		}
	}
	return false
}
