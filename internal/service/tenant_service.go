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

type tenantRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Tenant, int, error)
	FindByID(ctx context.Context, id int64) (*models.Tenant, error)
	ExistsBySlug(ctx context.Context, slug string, excludeID int64) (bool, error)
	Create(ctx context.Context, tenant *models.Tenant) error
	Update(ctx context.Context, tenant *models.Tenant) error
	SoftDelete(ctx context.Context, id int64, deletedBy string) (bool, error)
}

// CreateTenantRequest holds payload for provisioning tenants.
type CreateTenantRequest struct {
	Name         string `json:"name" validate:"required"`
	Slug         string `json:"slug" validate:"required,lowercase,alphanum"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
}

// UpdateTenantRequest holds payload for updating tenants.
type UpdateTenantRequest struct {
	Name         string              `json:"name" validate:"required"`
	Slug         string              `json:"slug" validate:"required,lowercase,alphanum"`
	ContactEmail string              `json:"contact_email" validate:"required,email"`
	Status       models.TenantStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}

// TenantService manages tenant organizations. Every operation requires a
// global principal; tenants are invisible to tenant-bound roles.
type TenantService struct {
	repo      tenantRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTenantService constructs the tenant service.
func NewTenantService(repo tenantRepository, validate *validator.Validate, logger *zap.Logger) *TenantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{repo: repo, validator: validate, logger: logger}
}

func requireGlobal(p tenancy.Principal) error {
	if !p.Global() {
		return appErrors.Clone(appErrors.ErrForbidden, "tenant management requires super admin")
	}
	return nil
}

// List returns all tenants plus pagination metadata.
func (s *TenantService) List(ctx context.Context, p tenancy.Principal, q tenancy.ListQuery, f tenancy.Filters) ([]models.Tenant, *tenancy.Pagination, error) {
	if err := requireGlobal(p); err != nil {
		return nil, nil, err
	}
	clause, err := tenancy.Build(tenancy.AccessFilter{}, q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	tenants, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tenants")
	}
	return tenants, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a single tenant.
func (s *TenantService) Get(ctx context.Context, p tenancy.Principal, id int64) (*models.Tenant, error) {
	if err := requireGlobal(p); err != nil {
		return nil, err
	}
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tenant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tenant")
	}
	return tenant, nil
}

// Create provisions a new active tenant.
func (s *TenantService) Create(ctx context.Context, p tenancy.Principal, req CreateTenantRequest) (*models.Tenant, error) {
	if err := requireGlobal(p); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tenant payload")
	}
	exists, err := s.repo.ExistsBySlug(ctx, req.Slug, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate tenant slug")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tenant slug already used")
	}
	tenant := &models.Tenant{
		Name:         req.Name,
		Slug:         req.Slug,
		ContactEmail: req.ContactEmail,
		Status:       models.TenantStatusActive,
	}
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tenant")
	}
	s.logger.Info("tenant provisioned", zap.Int64("tenant_id", tenant.ID), zap.String("slug", tenant.Slug))
	return tenant, nil
}

// Update modifies an existing tenant.
func (s *TenantService) Update(ctx context.Context, p tenancy.Principal, id int64, req UpdateTenantRequest) (*models.Tenant, error) {
	if err := requireGlobal(p); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tenant payload")
	}
	tenant, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsBySlug(ctx, req.Slug, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate tenant slug")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tenant slug already used")
	}
	tenant.Name = req.Name
	tenant.Slug = req.Slug
	tenant.ContactEmail = req.ContactEmail
	tenant.Status = req.Status
	if err := s.repo.Update(ctx, tenant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tenant")
	}
	return tenant, nil
}

// Delete tags a tenant as deleted. Records inside the tenant keep their rows
// and become unreachable through scoped queries.
func (s *TenantService) Delete(ctx context.Context, p tenancy.Principal, id int64) error {
	if err := requireGlobal(p); err != nil {
		return err
	}
	deleted, err := s.repo.SoftDelete(ctx, id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete tenant")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "tenant not found")
	}
	return nil
}
