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

type clientRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Client, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Client, error)
	ExistsByName(ctx context.Context, filter tenancy.AccessFilter, name string, excludeID string) (bool, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
}

// CreateClientRequest holds payload for registering client organizations.
// TenantID is honored only for super admins; everyone else writes into their
// own tenant.
type CreateClientRequest struct {
	TenantID     *int64 `json:"tenant_id"`
	Name         string `json:"name" validate:"required"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
}

// UpdateClientRequest holds payload for updating client organizations.
type UpdateClientRequest struct {
	Name         string              `json:"name" validate:"required"`
	ContactEmail string              `json:"contact_email" validate:"required,email"`
	Phone        string              `json:"phone"`
	City         string              `json:"city"`
	Status       models.ClientStatus `json:"status" validate:"required,oneof=PENDING APPROVED SUSPENDED"`
	Active       bool                `json:"active"`
}

// ClientService handles client-organization use-cases.
type ClientService struct {
	repo      clientRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClientService constructs the client service.
func NewClientService(repo clientRepository, validate *validator.Validate, logger *zap.Logger) *ClientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{repo: repo, validator: validate, logger: logger}
}

// List returns clients visible to the principal plus pagination metadata.
func (s *ClientService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.Client, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	clients, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clients")
	}
	return clients, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a single client within the principal's scope.
func (s *ClientService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	return client, nil
}

// Create registers a new client organization in PENDING state.
func (s *ClientService) Create(ctx context.Context, p tenancy.Principal, ip string, req CreateClientRequest) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}
	tenantID, err := writeTenant(p, req.TenantID)
	if err != nil {
		return nil, err
	}
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &tenantID
	exists, err := s.repo.ExistsByName(ctx, scope, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate client name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "client name already used")
	}
	client := &models.Client{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Phone:        req.Phone,
		City:         req.City,
		Status:       models.ClientStatusPending,
		Active:       true,
		TenantScoped: models.TenantScoped{
			TenantID:  tenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}
	s.logger.Info("client created", zap.String("client_id", client.ID), zap.Int64("tenant_id", tenantID))
	return client, nil
}

// Update modifies an existing client within the principal's scope.
func (s *ClientService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateClientRequest) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}
	client, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	// Name uniqueness is per tenant; pin the check to the record's tenant so
	// a global principal is not tripped by a namesake elsewhere.
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &client.TenantID
	exists, err := s.repo.ExistsByName(ctx, scope, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate client name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "client name already used")
	}
	client.Name = req.Name
	client.ContactEmail = req.ContactEmail
	client.Phone = req.Phone
	client.City = req.City
	client.Status = req.Status
	client.Active = req.Active
	client.UpdatedBy = &p.UserID
	if err := s.repo.Update(ctx, client); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update client")
	}
	return client, nil
}

// Delete tags a client as deleted within the principal's scope.
func (s *ClientService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete client")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "client not found")
	}
	return nil
}
