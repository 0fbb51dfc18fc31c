package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	created *models.User
	updated *models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}}
}

func (m *mockUserRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "u.id",
		TenantColumn:  "u.tenant_id",
		DeletedColumn: "u.deleted_at",
		DefaultSort:   "u.created_at",
		SearchColumns: []string{"u.email", "u.full_name"},
		BoolFilters:   map[string]string{"active": "u.active"},
		EnumFilters:   map[string]string{"role": "u.role"},
	}
}

func (m *mockUserRepo) List(_ context.Context, _ tenancy.Clause) ([]models.User, int, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) visible(filter tenancy.AccessFilter, u *models.User) bool {
	if u.DeletedAt != nil && !filter.IncludeDeleted {
		return false
	}
	if filter.TenantID != nil && (u.TenantID == nil || *u.TenantID != *filter.TenantID) {
		return false
	}
	return true
}

func (m *mockUserRepo) FindByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok || !m.visible(filter, u) {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, filter tenancy.AccessFilter, email, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.ID == excludeID || !m.visible(filter, u) {
			continue
		}
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	user.ID = "user-new"
	m.created = user
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	m.updated = user
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) SoftDelete(_ context.Context, filter tenancy.AccessFilter, id, _ string) (bool, error) {
	u, ok := m.users[id]
	if !ok || !m.visible(filter, u) {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func TestUserServiceCreateInheritsTenant(t *testing.T) {
	repo := newMockUserRepo()
	svc := newUserService(repo)

	// The requested tenant is ignored for tenant-bound principals.
	user, err := svc.Create(context.Background(), tenantAdmin(7), CreateUserRequest{
		TenantID: int64Ptr(99),
		Email:    "teacher@tenant.test",
		Password: "secret123",
		FullName: "Jordan Teacher",
		Role:     "TEACHER",
	})
	require.NoError(t, err)
	require.NotNil(t, user.TenantID)
	assert.Equal(t, int64(7), *user.TenantID)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
}

func TestUserServiceCreateGlobalRoleNeedsGlobalPrincipal(t *testing.T) {
	repo := newMockUserRepo()
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), tenantAdmin(7), CreateUserRequest{
		Email:    "root@platform.test",
		Password: "secret123",
		FullName: "Root",
		Role:     "SUPER_ADMIN",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	user, err := svc.Create(context.Background(), superAdmin(), CreateUserRequest{
		Email:    "root@platform.test",
		Password: "secret123",
		FullName: "Root",
		Role:     "SUPER_ADMIN",
	})
	require.NoError(t, err)
	assert.Nil(t, user.TenantID)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{
		ID:       "u1",
		TenantID: int64Ptr(7),
		Email:    "taken@tenant.test",
	}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), tenantAdmin(7), CreateUserRequest{
		Email:    "taken@tenant.test",
		Password: "secret123",
		FullName: "Dup",
		Role:     "STUDENT",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateTenantBoundStaysBound(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{
		ID:       "u1",
		TenantID: int64Ptr(7),
		Email:    "teacher@tenant.test",
		FullName: "Jordan Teacher",
		Role:     tenancy.RoleTeacher,
		Active:   true,
	}
	svc := newUserService(repo)

	_, err := svc.Update(context.Background(), superAdmin(), "u1", UpdateUserRequest{
		FullName: "Jordan Teacher",
		Role:     "SUPER_ADMIN",
		Active:   true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteOwnAccount(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["admin-1"] = &models.User{
		ID:       "admin-1",
		TenantID: int64Ptr(7),
	}
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), tenantAdmin(7), "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.users, "admin-1")
}

func TestUserServiceDeleteHidesForeignTenant(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{
		ID:       "u1",
		TenantID: int64Ptr(2),
	}
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), tenantAdmin(1), "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
