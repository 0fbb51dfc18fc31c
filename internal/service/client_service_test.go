package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func int64Ptr(v int64) *int64 { return &v }

func tenantAdmin(tenant int64) tenancy.Principal {
	return tenancy.Principal{UserID: "admin-1", Role: tenancy.RoleTenantAdmin, TenantID: int64Ptr(tenant)}
}

func superAdmin() tenancy.Principal {
	return tenancy.Principal{UserID: "root-1", Role: tenancy.RoleSuperAdmin}
}

type mockClientRepo struct {
	clients    map[string]*models.Client
	lastClause *tenancy.Clause
	created    *models.Client
}

func newMockClientRepo() *mockClientRepo {
	return &mockClientRepo{clients: map[string]*models.Client{}}
}

func (m *mockClientRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "c.id",
		TenantColumn:  "c.tenant_id",
		DeletedColumn: "c.deleted_at",
		DefaultSort:   "c.created_at",
		SortColumns:   map[string]string{"name": "c.name", "created_at": "c.created_at"},
		SearchColumns: []string{"c.name", "c.city"},
		DateColumn:    "c.created_at",
		StringFilters: map[string]string{"city": "c.city"},
		BoolFilters:   map[string]string{"active": "c.active"},
		EnumFilters:   map[string]string{"status": "c.status"},
	}
}

func (m *mockClientRepo) List(_ context.Context, clause tenancy.Clause) ([]models.Client, int, error) {
	m.lastClause = &clause
	out := make([]models.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockClientRepo) visible(filter tenancy.AccessFilter, c *models.Client) bool {
	if c.Deleted() && !filter.IncludeDeleted {
		return false
	}
	if filter.TenantID != nil && c.TenantID != *filter.TenantID {
		return false
	}
	return true
}

func (m *mockClientRepo) FindByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Client, error) {
	c, ok := m.clients[id]
	if !ok || !m.visible(filter, c) {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (m *mockClientRepo) ExistsByName(_ context.Context, filter tenancy.AccessFilter, name, excludeID string) (bool, error) {
	for _, c := range m.clients {
		if c.ID == excludeID || !m.visible(filter, c) {
			continue
		}
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClientRepo) Create(_ context.Context, client *models.Client) error {
	client.ID = "client-new"
	m.created = client
	clone := *client
	m.clients[client.ID] = &clone
	return nil
}

func (m *mockClientRepo) Update(_ context.Context, client *models.Client) error {
	clone := *client
	m.clients[client.ID] = &clone
	return nil
}

func (m *mockClientRepo) SoftDelete(_ context.Context, filter tenancy.AccessFilter, id, deletedBy string) (bool, error) {
	c, ok := m.clients[id]
	if !ok || !m.visible(filter, c) {
		return false, nil
	}
	c.DeletedBy = &deletedBy
	now := time.Now().UTC()
	c.DeletedAt = &now
	return true, nil
}

func newClientService(repo *mockClientRepo) *ClientService {
	return NewClientService(repo, validator.New(), zap.NewNop())
}

func TestClientServiceListPinsTenantScope(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(repo)

	// The override must be ignored for tenant-bound principals.
	_, _, err := svc.List(context.Background(), tenantAdmin(7), int64Ptr(99), tenancy.NewListQuery(), tenancy.Filters{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastClause)
	assert.Contains(t, repo.lastClause.Where, "c.tenant_id = $1")
	assert.Equal(t, int64(7), repo.lastClause.Args[0])
}

func TestClientServiceListHonorsOverrideForSuperAdmin(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(repo)

	_, _, err := svc.List(context.Background(), superAdmin(), int64Ptr(3), tenancy.NewListQuery(), tenancy.Filters{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastClause)
	assert.Contains(t, repo.lastClause.Where, "c.tenant_id = $1")
	assert.Equal(t, int64(3), repo.lastClause.Args[0])

	_, _, err = svc.List(context.Background(), superAdmin(), nil, tenancy.NewListQuery(), tenancy.Filters{})
	require.NoError(t, err)
	assert.False(t, strings.Contains(repo.lastClause.Where, "tenant_id"))
	assert.Contains(t, repo.lastClause.Where, "c.deleted_at IS NULL")
}

func TestClientServiceListRejectsInvalidQuery(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(repo)

	q := tenancy.NewListQuery()
	q.Page = 0
	_, _, err := svc.List(context.Background(), tenantAdmin(7), nil, q, tenancy.Filters{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidQuery.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.lastClause)

	q = tenancy.NewListQuery()
	q.SortBy = "phone"
	_, _, err = svc.List(context.Background(), tenantAdmin(7), nil, q, tenancy.Filters{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidQuery.Code, appErrors.FromError(err).Code)
}

func TestClientServiceGetHidesForeignTenant(t *testing.T) {
	repo := newMockClientRepo()
	repo.clients["c1"] = &models.Client{
		ID:           "c1",
		Name:         "Acme",
		TenantScoped: models.TenantScoped{TenantID: 2},
	}
	svc := newClientService(repo)

	_, err := svc.Get(context.Background(), tenantAdmin(1), "c1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErr.Status)

	got, err := svc.Get(context.Background(), tenantAdmin(2), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
}

func TestClientServiceCreate(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(repo)

	client, err := svc.Create(context.Background(), tenantAdmin(7), "10.0.0.1", CreateClientRequest{
		Name:         "Acme",
		ContactEmail: "ops@acme.test",
		City:         "Bandung",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ClientStatusPending, client.Status)
	assert.True(t, client.Active)
	assert.Equal(t, int64(7), client.TenantID)
	require.NotNil(t, client.CreatedBy)
	assert.Equal(t, "admin-1", *client.CreatedBy)
	assert.Equal(t, "10.0.0.1", client.CreatedIP)
}

func TestClientServiceCreateSuperAdminRequiresTenant(t *testing.T) {
	repo := newMockClientRepo()
	svc := newClientService(repo)

	_, err := svc.Create(context.Background(), superAdmin(), "", CreateClientRequest{
		Name:         "Acme",
		ContactEmail: "ops@acme.test",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	client, err := svc.Create(context.Background(), superAdmin(), "", CreateClientRequest{
		TenantID:     int64Ptr(4),
		Name:         "Acme",
		ContactEmail: "ops@acme.test",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), client.TenantID)
}

func TestClientServiceCreateDuplicateName(t *testing.T) {
	repo := newMockClientRepo()
	repo.clients["c1"] = &models.Client{
		ID:           "c1",
		Name:         "Acme",
		TenantScoped: models.TenantScoped{TenantID: 7},
	}
	svc := newClientService(repo)

	_, err := svc.Create(context.Background(), tenantAdmin(7), "", CreateClientRequest{
		Name:         "Acme",
		ContactEmail: "ops@acme.test",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// The same name inside another tenant does not collide.
	_, err = svc.Create(context.Background(), tenantAdmin(8), "", CreateClientRequest{
		Name:         "Acme",
		ContactEmail: "ops@acme.test",
	})
	require.NoError(t, err)
}

func TestClientServiceUpdateUniquenessStaysTenantScoped(t *testing.T) {
	repo := newMockClientRepo()
	repo.clients["c1"] = &models.Client{
		ID: "c1", Name: "Acme", ContactEmail: "ops@acme.test",
		Status: models.ClientStatusApproved, Active: true,
		TenantScoped: models.TenantScoped{TenantID: 1},
	}
	repo.clients["c2"] = &models.Client{
		ID: "c2", Name: "Acme", ContactEmail: "ops@acme.example",
		Status: models.ClientStatusApproved, Active: true,
		TenantScoped: models.TenantScoped{TenantID: 2},
	}
	svc := newClientService(repo)

	// A namesake in another tenant must not trip a super admin's update.
	updated, err := svc.Update(context.Background(), superAdmin(), "c1", UpdateClientRequest{
		Name:         "Acme",
		ContactEmail: "ops@acme.test",
		Status:       models.ClientStatusApproved,
		Active:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.TenantID)

	// Collisions inside the record's own tenant still conflict.
	repo.clients["c3"] = &models.Client{
		ID: "c3", Name: "Globex", ContactEmail: "ops@globex.test",
		Status: models.ClientStatusApproved, Active: true,
		TenantScoped: models.TenantScoped{TenantID: 1},
	}
	_, err = svc.Update(context.Background(), superAdmin(), "c1", UpdateClientRequest{
		Name:         "Globex",
		ContactEmail: "ops@acme.test",
		Status:       models.ClientStatusApproved,
		Active:       true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestClientServiceDelete(t *testing.T) {
	repo := newMockClientRepo()
	repo.clients["c1"] = &models.Client{
		ID:           "c1",
		Name:         "Acme",
		TenantScoped: models.TenantScoped{TenantID: 2},
	}
	svc := newClientService(repo)

	err := svc.Delete(context.Background(), tenantAdmin(1), "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), tenantAdmin(2), "c1"))
	assert.True(t, repo.clients["c1"].Deleted())
}
