package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
)

const clientColumns = `c.id, c.name, c.contact_email, c.phone, c.city, c.status, c.active,
        c.tenant_id, c.created_by, c.updated_by, c.created_ip, c.created_at, c.updated_at, c.deleted_at, c.deleted_by`

// ClientRepository manages persistence for client organizations.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository constructs a ClientRepository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// QueryConfig declares the list-query surface for clients.
func (r *ClientRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "c.id",
		TenantColumn:  "c.tenant_id",
		DeletedColumn: "c.deleted_at",
		DefaultSort:   "c.created_at",
		SortColumns: map[string]string{
			"name":       "c.name",
			"city":       "c.city",
			"status":     "c.status",
			"created_at": "c.created_at",
		},
		SearchColumns: []string{"c.name", "c.contact_email"},
		DateColumn:    "c.created_at",
		StringFilters: map[string]string{"city": "c.city"},
		BoolFilters:   map[string]string{"active": "c.active"},
		EnumFilters:   map[string]string{"status": "c.status"},
	}
}

// List returns clients matching the composed clause plus the total count.
func (r *ClientRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Client, int, error) {
	query := fmt.Sprintf("SELECT %s FROM clients c WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		clientColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM clients c WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}
	return clients, total, nil
}

// FindByID fetches a client within the caller's access scope. Rows outside
// the scope are indistinguishable from absent rows.
func (r *ClientRepository) FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Client, error) {
	conds := []string{"c.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("c.tenant_id", "c.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM clients c WHERE %s", clientColumns, strings.Join(conds, " AND "))
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, args...); err != nil {
		return nil, err
	}
	return &client, nil
}

// ExistsByName checks name uniqueness within the caller's scope, optionally
// excluding an ID.
func (r *ClientRepository) ExistsByName(ctx context.Context, filter tenancy.AccessFilter, name string, excludeID string) (bool, error) {
	conds := []string{"c.name = $1"}
	args := []interface{}{name}
	if excludeID != "" {
		args = append(args, excludeID)
		conds = append(conds, fmt.Sprintf("c.id <> $%d", len(args)))
	}
	extra, extraArgs := filter.Predicates("c.tenant_id", "c.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM clients c WHERE %s)", strings.Join(conds, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check client name: %w", err)
	}
	return exists, nil
}

// Create inserts a new client record.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now
	const query = `INSERT INTO clients (id, name, contact_email, phone, city, status, active, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :name, :contact_email, :phone, :city, :status, :active, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// Update modifies an existing client. tenant_id is deliberately absent from
// the SET list; ownership never changes after creation.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clients SET name = :name, contact_email = :contact_email, phone = :phone, city = :city,
        status = :status, active = :active, updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

// SoftDelete tags a client as deleted within the caller's scope. Returns
// false when no row matched.
func (r *ClientRepository) SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE clients SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete client: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete client: %w", err)
	}
	return affected > 0, nil
}
