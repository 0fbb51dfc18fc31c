package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type userRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.User, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, filter tenancy.AccessFilter, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
}

// CreateUserRequest holds payload for provisioning user accounts.
type CreateUserRequest struct {
	TenantID *int64 `json:"tenant_id"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=SUPER_ADMIN TENANT_ADMIN TEACHER STUDENT"`
}

// UpdateUserRequest holds payload for updating user accounts.
type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=SUPER_ADMIN TENANT_ADMIN TEACHER STUDENT"`
	Active   bool   `json:"active"`
}

// UserService manages user accounts within the principal's scope.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns users visible to the principal plus pagination metadata.
func (s *UserService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.User, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	users, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a single user within the principal's scope.
func (s *UserService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions a new user account. Only global principals may mint
// global accounts; tenant admins create accounts inside their own tenant.
func (s *UserService) Create(ctx context.Context, p tenancy.Principal, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	role := tenancy.Role(req.Role)
	if role.Global() && !p.Global() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot grant a global role")
	}

	var tenantID *int64
	if !role.Global() {
		resolved, err := writeTenant(p, req.TenantID)
		if err != nil {
			return nil, err
		}
		tenantID = &resolved
	}

	scope := tenancy.ScopeRecord(p)
	scope.TenantID = tenantID
	exists, err := s.repo.ExistsByEmail(ctx, scope, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		TenantID:     tenantID,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", req.Role))
	return user, nil
}

// Update modifies an existing user within the principal's scope. Role
// escalation to a global role stays reserved for global principals.
func (s *UserService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	role := tenancy.Role(req.Role)
	if role.Global() && !p.Global() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot grant a global role")
	}
	user, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if role.Global() && user.TenantID != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tenant-bound user cannot become global")
	}
	user.FullName = req.FullName
	user.Role = role
	user.Active = req.Active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// Delete tags a user as deleted within the principal's scope.
func (s *UserService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	if id == p.UserID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete own account")
	}
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return nil
}
