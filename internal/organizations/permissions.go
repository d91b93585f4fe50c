package organizations

import "github.com/docuflow/backend/internal/models"

// Permission is an action a member may take within an organization.
type Permission string

const (
	PermDocumentsRead   Permission = "documents:read"
	PermDocumentsWrite  Permission = "documents:write"
	PermDocumentsDelete Permission = "documents:delete"
	PermMembersManage   Permission = "members:manage"
	PermOrgUpdate       Permission = "org:update"
	PermOrgDelete       Permission = "org:delete"
	PermBillingManage   Permission = "billing:manage"
)

var memberPerms = []Permission{PermDocumentsRead, PermDocumentsWrite}

var adminPerms = append(append([]Permission{}, memberPerms...),
	PermDocumentsDelete, PermMembersManage, PermOrgUpdate)

var ownerPerms = append(append([]Permission{}, adminPerms...),
	PermBillingManage, PermOrgDelete)

var rolePermissions = map[models.OrgRole]map[Permission]bool{
	models.OrgRoleMember: toSet(memberPerms),
	models.OrgRoleAdmin:  toSet(adminPerms),
	models.OrgRoleOwner:  toSet(ownerPerms),
}

func toSet(perms []Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return m
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role models.OrgRole, perm Permission) bool {
	return rolePermissions[role][perm]
}

// Permissions lists what role grants, in matrix order.
func Permissions(role models.OrgRole) []Permission {
	switch role {
	case models.OrgRoleOwner:
		return append([]Permission{}, ownerPerms...)
	case models.OrgRoleAdmin:
		return append([]Permission{}, adminPerms...)
	case models.OrgRoleMember:
		return append([]Permission{}, memberPerms...)
	}
	return nil
}

// CanManageRole reports whether actor may change or remove a member holding target.
// Owners manage every non-owner role; admins manage members only.
func CanManageRole(actor, target models.OrgRole) bool {
	switch actor {
	case models.OrgRoleOwner:
		return target == models.OrgRoleAdmin || target == models.OrgRoleMember
	case models.OrgRoleAdmin:
		return target == models.OrgRoleMember
	}
	return false
}
