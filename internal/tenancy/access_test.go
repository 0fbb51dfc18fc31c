package tenancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func tenantPrincipal(role Role, tenant int64) Principal {
	return Principal{UserID: "user-1", Role: role, TenantID: &tenant}
}

func TestScopePinsNonGlobalRolesToOwnTenant(t *testing.T) {
	override := int64(99)
	for _, role := range []Role{RoleTenantAdmin, RoleTeacher, RoleStudent} {
		filter := Scope(tenantPrincipal(role, 5), &override)
		require.NotNil(t, filter.TenantID, "role %s", role)
		assert.Equal(t, int64(5), *filter.TenantID, "override must be ignored for role %s", role)
		assert.False(t, filter.IncludeDeleted)
	}
}

func TestScopeSuperAdminUnrestricted(t *testing.T) {
	filter := Scope(Principal{UserID: "root", Role: RoleSuperAdmin}, nil)
	assert.Nil(t, filter.TenantID)
}

func TestScopeSuperAdminHonorsOverride(t *testing.T) {
	override := int64(7)
	filter := Scope(Principal{UserID: "root", Role: RoleSuperAdmin}, &override)
	require.NotNil(t, filter.TenantID)
	assert.Equal(t, int64(7), *filter.TenantID)
}

func TestScopeIsPure(t *testing.T) {
	p := tenantPrincipal(RoleTenantAdmin, 3)
	first := Scope(p, nil)
	second := Scope(p, nil)
	require.NotNil(t, first.TenantID)
	require.NotNil(t, second.TenantID)
	assert.Equal(t, *first.TenantID, *second.TenantID)
	assert.Equal(t, first.IncludeDeleted, second.IncludeDeleted)
}

func TestAuthorizeCrossTenantIsNotFound(t *testing.T) {
	err := Authorize(tenantPrincipal(RoleTeacher, 3), 4)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAuthorizeOwnTenant(t *testing.T) {
	assert.NoError(t, Authorize(tenantPrincipal(RoleTenantAdmin, 3), 3))
}

func TestAuthorizeGlobalCrossesTenants(t *testing.T) {
	assert.NoError(t, Authorize(Principal{UserID: "root", Role: RoleSuperAdmin}, 7))
}

func TestPredicatesTenantAndSoftDelete(t *testing.T) {
	tenant := int64(5)
	filter := AccessFilter{TenantID: &tenant}
	conds, args := filter.Predicates("c.tenant_id", "c.deleted_at", 2)
	require.Len(t, conds, 2)
	assert.Equal(t, "c.tenant_id = $3", conds[0])
	assert.Equal(t, "c.deleted_at IS NULL", conds[1])
	require.Len(t, args, 1)
	assert.Equal(t, int64(5), args[0])
}

func TestPredicatesUnrestricted(t *testing.T) {
	conds, args := AccessFilter{}.Predicates("c.tenant_id", "c.deleted_at", 0)
	require.Len(t, conds, 1)
	assert.Equal(t, "c.deleted_at IS NULL", conds[0])
	assert.Empty(t, args)
}

func TestPredicatesIncludeDeleted(t *testing.T) {
	conds, _ := AccessFilter{IncludeDeleted: true}.Predicates("c.tenant_id", "c.deleted_at", 0)
	assert.Empty(t, conds)
}
