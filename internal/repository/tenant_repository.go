package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
)

const tenantColumns = `t.id, t.name, t.slug, t.contact_email, t.status, t.created_at, t.updated_at, t.deleted_at, t.deleted_by`

// TenantRepository manages persistence for tenant organizations. Tenants are
// global records, so the query config carries no tenant column; only the
// soft-delete exclusion applies.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository constructs a TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// QueryConfig declares the list-query surface for tenants.
func (r *TenantRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "t.id",
		DeletedColumn: "t.deleted_at",
		DefaultSort:   "t.created_at",
		SortColumns: map[string]string{
			"name":       "t.name",
			"slug":       "t.slug",
			"created_at": "t.created_at",
		},
		SearchColumns: []string{"t.name", "t.slug", "t.contact_email"},
		DateColumn:    "t.created_at",
		EnumFilters:   map[string]string{"status": "t.status"},
	}
}

// List returns tenants matching the composed clause plus the total count.
func (r *TenantRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Tenant, int, error) {
	query := fmt.Sprintf("SELECT %s FROM tenants t WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		tenantColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var tenants []models.Tenant
	if err := r.db.SelectContext(ctx, &tenants, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tenants t WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}
	return tenants, total, nil
}

// FindByID fetches a live tenant by ID.
func (r *TenantRepository) FindByID(ctx context.Context, id int64) (*models.Tenant, error) {
	query := fmt.Sprintf("SELECT %s FROM tenants t WHERE t.id = $1 AND t.deleted_at IS NULL", tenantColumns)
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, id); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ExistsBySlug checks slug uniqueness, optionally excluding an ID.
func (r *TenantRepository) ExistsBySlug(ctx context.Context, slug string, excludeID int64) (bool, error) {
	conds := []string{"t.slug = $1", "t.deleted_at IS NULL"}
	args := []interface{}{slug}
	if excludeID > 0 {
		args = append(args, excludeID)
		conds = append(conds, fmt.Sprintf("t.id <> $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM tenants t WHERE %s)", strings.Join(conds, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check tenant slug: %w", err)
	}
	return exists, nil
}

// Create inserts a new tenant record and fills in the generated ID.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now
	const query = `INSERT INTO tenants (name, slug, contact_email, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.GetContext(ctx, &tenant.ID, query,
		tenant.Name, tenant.Slug, tenant.ContactEmail, tenant.Status, tenant.CreatedAt, tenant.UpdatedAt); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// Update modifies an existing tenant.
func (r *TenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tenants SET name = :name, slug = :slug, contact_email = :contact_email, status = :status, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, tenant); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return nil
}

// SoftDelete tags a tenant as deleted.
func (r *TenantRepository) SoftDelete(ctx context.Context, id int64, deletedBy string) (bool, error) {
	const query = `UPDATE tenants SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), deletedBy, id)
	if err != nil {
		return false, fmt.Errorf("delete tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete tenant: %w", err)
	}
	return affected > 0, nil
}
