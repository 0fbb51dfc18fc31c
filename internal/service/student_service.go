package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type studentRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Student, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Student, error)
	ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	TenantID  *int64     `json:"tenant_id"`
	ClientID  *string    `json:"client_id"`
	Code      string     `json:"code" validate:"required"`
	FullName  string     `json:"full_name" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Gender    string     `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate *time.Time `json:"birth_date"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	ClientID  *string    `json:"client_id"`
	Code      string     `json:"code" validate:"required"`
	FullName  string     `json:"full_name" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Gender    string     `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate *time.Time `json:"birth_date"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Active    bool       `json:"active"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students visible to the principal plus pagination metadata.
func (s *StudentService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.Student, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	students, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a single student within the principal's scope.
func (s *StudentService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student profile.
func (s *StudentService) Create(ctx context.Context, p tenancy.Principal, ip string, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	tenantID, err := writeTenant(p, req.TenantID)
	if err != nil {
		return nil, err
	}
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &tenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student code already used")
	}
	student := &models.Student{
		ClientID:  req.ClientID,
		Code:      req.Code,
		FullName:  req.FullName,
		Email:     req.Email,
		Gender:    req.Gender,
		BirthDate: req.BirthDate,
		Phone:     req.Phone,
		Address:   req.Address,
		Active:    true,
		TenantScoped: models.TenantScoped{
			TenantID:  tenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.Int64("tenant_id", tenantID))
	return student, nil
}

// Update modifies an existing student within the principal's scope.
func (s *StudentService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	// Code uniqueness is per tenant; pin the check to the record's tenant.
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &student.TenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student code already used")
	}
	student.ClientID = req.ClientID
	student.Code = req.Code
	student.FullName = req.FullName
	student.Email = req.Email
	student.Gender = req.Gender
	student.BirthDate = req.BirthDate
	student.Phone = req.Phone
	student.Address = req.Address
	student.Active = req.Active
	student.UpdatedBy = &p.UserID
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete tags a student as deleted within the principal's scope.
func (s *StudentService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}
