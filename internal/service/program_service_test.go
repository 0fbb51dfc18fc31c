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

type mockProgramRepo struct {
	programs        map[string]*models.Program
	specializations map[string]*models.Specialization
}

func newMockProgramRepo() *mockProgramRepo {
	return &mockProgramRepo{
		programs:        map[string]*models.Program{},
		specializations: map[string]*models.Specialization{},
	}
}

func (m *mockProgramRepo) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "p.id",
		TenantColumn:  "p.tenant_id",
		DeletedColumn: "p.deleted_at",
		DefaultSort:   "p.created_at",
		SearchColumns: []string{"p.name", "p.code"},
		BoolFilters:   map[string]string{"active": "p.active"},
	}
}

func (m *mockProgramRepo) List(_ context.Context, _ tenancy.Clause) ([]models.Program, int, error) {
	return nil, 0, nil
}

func (m *mockProgramRepo) visible(filter tenancy.AccessFilter, tenantID int64, deleted bool) bool {
	if deleted && !filter.IncludeDeleted {
		return false
	}
	if filter.TenantID != nil && tenantID != *filter.TenantID {
		return false
	}
	return true
}

func (m *mockProgramRepo) FindByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Program, error) {
	p, ok := m.programs[id]
	if !ok || !m.visible(filter, p.TenantID, p.Deleted()) {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (m *mockProgramRepo) ExistsByCode(_ context.Context, filter tenancy.AccessFilter, code, excludeID string) (bool, error) {
	for _, p := range m.programs {
		if p.ID == excludeID || !m.visible(filter, p.TenantID, p.Deleted()) {
			continue
		}
		if p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProgramRepo) Create(_ context.Context, program *models.Program) error {
	program.ID = "program-new"
	clone := *program
	m.programs[program.ID] = &clone
	return nil
}

func (m *mockProgramRepo) Update(_ context.Context, program *models.Program) error {
	clone := *program
	m.programs[program.ID] = &clone
	return nil
}

func (m *mockProgramRepo) SoftDelete(_ context.Context, filter tenancy.AccessFilter, id, _ string) (bool, error) {
	p, ok := m.programs[id]
	if !ok || !m.visible(filter, p.TenantID, p.Deleted()) {
		return false, nil
	}
	delete(m.programs, id)
	return true, nil
}

func (m *mockProgramRepo) ListSpecializations(_ context.Context, filter tenancy.AccessFilter, programID string) ([]models.Specialization, error) {
	var out []models.Specialization
	for _, s := range m.specializations {
		if s.ProgramID == programID && m.visible(filter, s.TenantID, s.Deleted()) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockProgramRepo) FindSpecializationByID(_ context.Context, filter tenancy.AccessFilter, id string) (*models.Specialization, error) {
	s, ok := m.specializations[id]
	if !ok || !m.visible(filter, s.TenantID, s.Deleted()) {
		return nil, sql.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

func (m *mockProgramRepo) CreateSpecialization(_ context.Context, specialization *models.Specialization) error {
	specialization.ID = "spec-new"
	clone := *specialization
	m.specializations[specialization.ID] = &clone
	return nil
}

func (m *mockProgramRepo) UpdateSpecialization(_ context.Context, specialization *models.Specialization) error {
	clone := *specialization
	m.specializations[specialization.ID] = &clone
	return nil
}

func (m *mockProgramRepo) SoftDeleteSpecialization(_ context.Context, filter tenancy.AccessFilter, id, _ string) (bool, error) {
	s, ok := m.specializations[id]
	if !ok || !m.visible(filter, s.TenantID, s.Deleted()) {
		return false, nil
	}
	delete(m.specializations, id)
	return true, nil
}

func seedProgram(repo *mockProgramRepo, id, code string, tenant int64) {
	repo.programs[id] = &models.Program{
		ID:           id,
		Code:         code,
		Name:         "Program " + id,
		Active:       true,
		TenantScoped: models.TenantScoped{TenantID: tenant},
	}
}

func TestProgramServiceUpdateUniquenessStaysTenantScoped(t *testing.T) {
	repo := newMockProgramRepo()
	seedProgram(repo, "p1", "PRG-1", 1)
	seedProgram(repo, "p2", "PRG-1", 2)
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	// The same code in another tenant must not trip a super admin's update.
	updated, err := svc.Update(context.Background(), superAdmin(), "p1", UpdateProgramRequest{
		Code:   "PRG-1",
		Name:   "Program p1",
		Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.TenantID)

	// A collision inside the record's own tenant still conflicts.
	seedProgram(repo, "p3", "PRG-3", 1)
	_, err = svc.Update(context.Background(), superAdmin(), "p1", UpdateProgramRequest{
		Code:   "PRG-3",
		Name:   "Program p1",
		Active: true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestProgramServiceSpecializationInheritsTenant(t *testing.T) {
	repo := newMockProgramRepo()
	seedProgram(repo, "p1", "PRG-1", 7)
	svc := NewProgramService(repo, validator.New(), zap.NewNop())

	specialization, err := svc.CreateSpecialization(context.Background(), tenantAdmin(7), "", "p1", CreateSpecializationRequest{
		Code: "SPC-1",
		Name: "Networks",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), specialization.TenantID)

	// A foreign program is invisible, so nothing can be attached to it.
	_, err = svc.CreateSpecialization(context.Background(), tenantAdmin(8), "", "p1", CreateSpecializationRequest{
		Code: "SPC-2",
		Name: "Security",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
