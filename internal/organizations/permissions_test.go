package organizations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docuflow/backend/internal/models"
)

func TestHasPermission(t *testing.T) {
	matrix := map[Permission][3]bool{
		// owner, admin, member
		PermDocumentsRead:   {true, true, true},
		PermDocumentsWrite:  {true, true, true},
		PermDocumentsDelete: {true, true, false},
		PermMembersManage:   {true, true, false},
		PermOrgUpdate:       {true, true, false},
		PermOrgDelete:       {true, false, false},
		PermBillingManage:   {true, false, false},
	}
	roles := []models.OrgRole{models.OrgRoleOwner, models.OrgRoleAdmin, models.OrgRoleMember}
	for perm, want := range matrix {
		for i, role := range roles {
			assert.Equal(t, want[i], HasPermission(role, perm), "%s %s", role, perm)
		}
		assert.False(t, HasPermission("viewer", perm))
		assert.False(t, HasPermission("", perm))
	}
}

func TestPermissions(t *testing.T) {
	assert.Len(t, Permissions(models.OrgRoleMember), 2)
	assert.Len(t, Permissions(models.OrgRoleAdmin), 5)
	assert.Len(t, Permissions(models.OrgRoleOwner), 7)
	assert.Nil(t, Permissions("viewer"))

	// Callers cannot mutate the matrix through the returned slice.
	p := Permissions(models.OrgRoleMember)
	p[0] = PermOrgDelete
	assert.False(t, HasPermission(models.OrgRoleMember, PermOrgDelete))
}

func TestCanManageRole(t *testing.T) {
	cases := []struct {
		actor, target models.OrgRole
		want          bool
	}{
		{models.OrgRoleOwner, models.OrgRoleOwner, false},
		{models.OrgRoleOwner, models.OrgRoleAdmin, true},
		{models.OrgRoleOwner, models.OrgRoleMember, true},
		{models.OrgRoleAdmin, models.OrgRoleOwner, false},
		{models.OrgRoleAdmin, models.OrgRoleAdmin, false},
		{models.OrgRoleAdmin, models.OrgRoleMember, true},
		{models.OrgRoleMember, models.OrgRoleMember, false},
		{"", models.OrgRoleMember, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanManageRole(tc.actor, tc.target), "%s -> %s", tc.actor, tc.target)
	}
}
