package tenancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func TestResolveTenantBoundRole(t *testing.T) {
	tenant := int64(5)
	p, err := Resolve("user-1", "TENANT_ADMIN", &tenant)
	require.NoError(t, err)
	assert.Equal(t, RoleTenantAdmin, p.Role)
	assert.Equal(t, int64(5), p.Tenant())
	assert.False(t, p.Global())
}

func TestResolveSuperAdminDropsTenant(t *testing.T) {
	tenant := int64(9)
	p, err := Resolve("root", "SUPER_ADMIN", &tenant)
	require.NoError(t, err)
	assert.True(t, p.Global())
	assert.Nil(t, p.TenantID)
	assert.Equal(t, int64(0), p.Tenant())
}

func TestResolveMissingUser(t *testing.T) {
	_, err := Resolve("", "TEACHER", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestResolveUnknownRole(t *testing.T) {
	tenant := int64(1)
	_, err := Resolve("user-1", "JANITOR", &tenant)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResolveTenantBoundRoleWithoutTenant(t *testing.T) {
	_, err := Resolve("user-1", "STUDENT", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	zero := int64(0)
	_, err = Resolve("user-1", "STUDENT", &zero)
	require.Error(t, err)
}
