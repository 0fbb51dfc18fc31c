package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type teacherRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Teacher, error)
	ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
}

// CreateTeacherRequest holds payload for registering teachers.
type CreateTeacherRequest struct {
	TenantID  *int64 `json:"tenant_id"`
	Code      string `json:"code" validate:"required"`
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
}

// UpdateTeacherRequest holds payload for updating teachers.
type UpdateTeacherRequest struct {
	Code      string `json:"code" validate:"required"`
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
	Active    bool   `json:"active"`
}

// TeacherService handles teacher use-cases.
type TeacherService struct {
	repo      teacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns teachers visible to the principal plus pagination metadata.
func (s *TeacherService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.Teacher, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	teachers, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a single teacher within the principal's scope.
func (s *TeacherService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher profile.
func (s *TeacherService) Create(ctx context.Context, p tenancy.Principal, ip string, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	tenantID, err := writeTenant(p, req.TenantID)
	if err != nil {
		return nil, err
	}
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &tenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate teacher code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher code already used")
	}
	teacher := &models.Teacher{
		Code:      req.Code,
		FullName:  req.FullName,
		Email:     req.Email,
		Specialty: req.Specialty,
		Phone:     req.Phone,
		Active:    true,
		TenantScoped: models.TenantScoped{
			TenantID:  tenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID), zap.Int64("tenant_id", tenantID))
	return teacher, nil
}

// Update modifies an existing teacher within the principal's scope.
func (s *TeacherService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	// Code uniqueness is per tenant; pin the check to the record's tenant.
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &teacher.TenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate teacher code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher code already used")
	}
	teacher.Code = req.Code
	teacher.FullName = req.FullName
	teacher.Email = req.Email
	teacher.Specialty = req.Specialty
	teacher.Phone = req.Phone
	teacher.Active = req.Active
	teacher.UpdatedBy = &p.UserID
	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Delete tags a teacher as deleted within the principal's scope.
func (s *TeacherService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return nil
}
