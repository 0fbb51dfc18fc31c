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

type programRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Program, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Program, error)
	ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
	ListSpecializations(ctx context.Context, filter tenancy.AccessFilter, programID string) ([]models.Specialization, error)
	FindSpecializationByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Specialization, error)
	CreateSpecialization(ctx context.Context, specialization *models.Specialization) error
	UpdateSpecialization(ctx context.Context, specialization *models.Specialization) error
	SoftDeleteSpecialization(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
}

// CreateProgramRequest holds payload for creating programs.
type CreateProgramRequest struct {
	TenantID    *int64 `json:"tenant_id"`
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// UpdateProgramRequest holds payload for updating programs.
type UpdateProgramRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// CreateSpecializationRequest holds payload for adding a specialization to a
// program.
type CreateSpecializationRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// UpdateSpecializationRequest holds payload for updating specializations.
type UpdateSpecializationRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// ProgramService handles program and specialization use-cases.
type ProgramService struct {
	repo      programRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs the program service.
func NewProgramService(repo programRepository, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// List returns programs visible to the principal plus pagination metadata.
func (s *ProgramService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.Program, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	programs, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a single program within the principal's scope.
func (s *ProgramService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// Create registers a new program.
func (s *ProgramService) Create(ctx context.Context, p tenancy.Principal, ip string, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	tenantID, err := writeTenant(p, req.TenantID)
	if err != nil {
		return nil, err
	}
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &tenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate program code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "program code already used")
	}
	program := &models.Program{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
		TenantScoped: models.TenantScoped{
			TenantID:  tenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// Update modifies an existing program within the principal's scope.
func (s *ProgramService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	// Code uniqueness is per tenant; pin the check to the record's tenant.
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &program.TenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate program code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "program code already used")
	}
	program.Code = req.Code
	program.Name = req.Name
	program.Description = req.Description
	program.Active = req.Active
	program.UpdatedBy = &p.UserID
	if err := s.repo.Update(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}

// Delete tags a program as deleted within the principal's scope.
func (s *ProgramService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "program not found")
	}
	return nil
}

// ListSpecializations returns the live specializations of a program.
func (s *ProgramService) ListSpecializations(ctx context.Context, p tenancy.Principal, programID string) ([]models.Specialization, error) {
	if _, err := s.Get(ctx, p, programID); err != nil {
		return nil, err
	}
	specializations, err := s.repo.ListSpecializations(ctx, tenancy.ScopeRecord(p), programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list specializations")
	}
	return specializations, nil
}

// CreateSpecialization adds a specialization under a program. The
// specialization inherits the program's tenant.
func (s *ProgramService) CreateSpecialization(ctx context.Context, p tenancy.Principal, ip string, programID string, req CreateSpecializationRequest) (*models.Specialization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid specialization payload")
	}
	program, err := s.Get(ctx, p, programID)
	if err != nil {
		return nil, err
	}
	specialization := &models.Specialization{
		ProgramID:   programID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
		TenantScoped: models.TenantScoped{
			TenantID:  program.TenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.CreateSpecialization(ctx, specialization); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create specialization")
	}
	return specialization, nil
}

// UpdateSpecialization modifies an existing specialization.
func (s *ProgramService) UpdateSpecialization(ctx context.Context, p tenancy.Principal, id string, req UpdateSpecializationRequest) (*models.Specialization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid specialization payload")
	}
	specialization, err := s.repo.FindSpecializationByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "specialization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load specialization")
	}
	specialization.Code = req.Code
	specialization.Name = req.Name
	specialization.Description = req.Description
	specialization.Active = req.Active
	specialization.UpdatedBy = &p.UserID
	if err := s.repo.UpdateSpecialization(ctx, specialization); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update specialization")
	}
	return specialization, nil
}

// DeleteSpecialization tags a specialization as deleted.
func (s *ProgramService) DeleteSpecialization(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDeleteSpecialization(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete specialization")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "specialization not found")
	}
	return nil
}
