package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mockTeacherRepo struct {
	teachers map[string]*models.Teacher
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{teachers: map[string]*models.Teacher{}}
}

func (m *mockTeacherRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "t.id",
		TenantColumn:  "t.tenant_id",
		DeletedColumn: "t.deleted_at",
		DefaultSort:   "t.created_at",
		SearchColumns: []string{"t.full_name", "t.code"},
		BoolFilters:   map[string]string{"active": "t.active"},
		StringFilters: map[string]string{"specialty": "t.specialty"},
	}
}

func (m *mockTeacherRepo) List(_ context.Context, _ tenancy.Clause) ([]models.Teacher, int, error) {
	return nil, 0, nil
}

func (m *mockTeacherRepo) visible(filter tenancy.AccessFilter, t *models.Teacher) bool {
	if t.Deleted() && !filter.IncludeDeleted {
		return false
	}
	if filter.TenantID != nil && t.TenantID != *filter.TenantID {
		return false
	}
	return true
}

func (m *mockTeacherRepo) FindByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Teacher, error) {
	t, ok := m.teachers[id]
	if !ok || !m.visible(filter, t) {
		return nil, sql.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (m *mockTeacherRepo) ExistsByCode(_ context.Context, filter tenancy.AccessFilter, code, excludeID string) (bool, error) {
	for _, t := range m.teachers {
		if t.ID == excludeID || !m.visible(filter, t) {
			continue
		}
		if t.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) Create(_ context.Context, teacher *models.Teacher) error {
	teacher.ID = "teacher-new"
	clone := *teacher
	m.teachers[teacher.ID] = &clone
	return nil
}

func (m *mockTeacherRepo) Update(_ context.Context, teacher *models.Teacher) error {
	clone := *teacher
	m.teachers[teacher.ID] = &clone
	return nil
}

func (m *mockTeacherRepo) SoftDelete(_ context.Context, filter tenancy.AccessFilter, id, _ string) (bool, error) {
	t, ok := m.teachers[id]
	if !ok || !m.visible(filter, t) {
		return false, nil
	}
	delete(m.teachers, id)
	return true, nil
}

func seedTeacher(repo *mockTeacherRepo, id, code string, tenant int64) {
	repo.teachers[id] = &models.Teacher{
		ID:           id,
		Code:         code,
		FullName:     "Teacher " + id,
		Email:        id + "@tenant.test",
		Active:       true,
		TenantScoped: models.TenantScoped{TenantID: tenant},
	}
}

func TestTeacherServiceCreateDuplicateCode(t *testing.T) {
	repo := newMockTeacherRepo()
	seedTeacher(repo, "t1", "TCH-1", 7)
	svc := NewTeacherService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), tenantAdmin(7), "", CreateTeacherRequest{
		Code:     "TCH-1",
		FullName: "Dup Teacher",
		Email:    "dup@tenant.test",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdateUniquenessStaysTenantScoped(t *testing.T) {
	repo := newMockTeacherRepo()
	seedTeacher(repo, "t1", "TCH-1", 1)
	seedTeacher(repo, "t2", "TCH-1", 2)
	svc := NewTeacherService(repo, validator.New(), zap.NewNop())

	// The same code in another tenant must not trip a super admin's update.
	updated, err := svc.Update(context.Background(), superAdmin(), "t1", UpdateTeacherRequest{
		Code:     "TCH-1",
		FullName: "Teacher t1",
		Email:    "t1@tenant.test",
		Active:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.TenantID)

	// A collision inside the record's own tenant still conflicts.
	seedTeacher(repo, "t3", "TCH-3", 1)
	_, err = svc.Update(context.Background(), superAdmin(), "t1", UpdateTeacherRequest{
		Code:     "TCH-3",
		FullName: "Teacher t1",
		Email:    "t1@tenant.test",
		Active:   true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
