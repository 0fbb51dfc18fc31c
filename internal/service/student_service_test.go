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

type mockStudentRepo struct {
	students map[string]*models.Student
	updated  *models.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: map[string]*models.Student{}}
}

func (m *mockStudentRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "s.id",
		TenantColumn:  "s.tenant_id",
		DeletedColumn: "s.deleted_at",
		DefaultSort:   "s.created_at",
		SearchColumns: []string{"s.full_name", "s.code"},
		BoolFilters:   map[string]string{"active": "s.active"},
		StringFilters: map[string]string{"client_id": "s.client_id"},
	}
}

func (m *mockStudentRepo) List(_ context.Context, _ tenancy.Clause) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (m *mockStudentRepo) visible(filter tenancy.AccessFilter, s *models.Student) bool {
	if s.Deleted() && !filter.IncludeDeleted {
		return false
	}
	if filter.TenantID != nil && s.TenantID != *filter.TenantID {
		return false
	}
	return true
}

func (m *mockStudentRepo) FindByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok || !m.visible(filter, s) {
		return nil, sql.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

func (m *mockStudentRepo) ExistsByCode(_ context.Context, filter tenancy.AccessFilter, code, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.ID == excludeID || !m.visible(filter, s) {
			continue
		}
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) error {
	student.ID = "student-new"
	clone := *student
	m.students[student.ID] = &clone
	return nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *models.Student) error {
	m.updated = student
	clone := *student
	m.students[student.ID] = &clone
	return nil
}

func (m *mockStudentRepo) SoftDelete(_ context.Context, filter tenancy.AccessFilter, id, _ string) (bool, error) {
	s, ok := m.students[id]
	if !ok || !m.visible(filter, s) {
		return false, nil
	}
	delete(m.students, id)
	return true, nil
}

func seedStudent(repo *mockStudentRepo, id, code string, tenant int64) {
	repo.students[id] = &models.Student{
		ID:           id,
		Code:         code,
		FullName:     "Student " + id,
		Email:        id + "@tenant.test",
		Active:       true,
		TenantScoped: models.TenantScoped{TenantID: tenant},
	}
}

func studentUpdateReq(code string) UpdateStudentRequest {
	return UpdateStudentRequest{
		Code:     code,
		FullName: "Student",
		Email:    "student@tenant.test",
		Active:   true,
	}
}

func TestStudentServiceCreateInheritsTenant(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), tenantAdmin(7), "10.0.0.1", CreateStudentRequest{
		Code:     "STD-1",
		FullName: "Jordan Student",
		Email:    "jordan@tenant.test",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), student.TenantID)
	assert.True(t, student.Active)
}

func TestStudentServiceUpdateUniquenessStaysTenantScoped(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "STD-1", 1)
	seedStudent(repo, "s2", "STD-1", 2)
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	// The same code in another tenant must not trip a super admin's update.
	updated, err := svc.Update(context.Background(), superAdmin(), "s1", studentUpdateReq("STD-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.TenantID)

	// A collision inside the record's own tenant still conflicts.
	seedStudent(repo, "s3", "STD-3", 1)
	_, err = svc.Update(context.Background(), superAdmin(), "s1", studentUpdateReq("STD-3"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGetHidesForeignTenant(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "STD-1", 2)
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), tenantAdmin(1), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
