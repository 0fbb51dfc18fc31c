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

const programColumns = `p.id, p.code, p.name, p.description, p.active,
        p.tenant_id, p.created_by, p.updated_by, p.created_ip, p.created_at, p.updated_at, p.deleted_at, p.deleted_by`

const specializationColumns = `sp.id, sp.program_id, sp.code, sp.name, sp.description, sp.active,
        sp.tenant_id, sp.created_by, sp.updated_by, sp.created_ip, sp.created_at, sp.updated_at, sp.deleted_at, sp.deleted_by`

// ProgramRepository manages persistence for programs and their
// specializations.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// QueryConfig declares the list-query surface for programs.
func (r *ProgramRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "p.id",
		TenantColumn:  "p.tenant_id",
		DeletedColumn: "p.deleted_at",
		DefaultSort:   "p.created_at",
		SortColumns: map[string]string{
			"name":       "p.name",
			"code":       "p.code",
			"created_at": "p.created_at",
		},
		SearchColumns: []string{"p.name", "p.code"},
		DateColumn:    "p.created_at",
		BoolFilters:   map[string]string{"active": "p.active"},
	}
}

// List returns programs matching the composed clause plus the total count.
func (r *ProgramRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Program, int, error) {
	query := fmt.Sprintf("SELECT %s FROM programs p WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		programColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM programs p WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindByID fetches a program within the caller's access scope.
func (r *ProgramRepository) FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Program, error) {
	conds := []string{"p.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("p.tenant_id", "p.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM programs p WHERE %s", programColumns, strings.Join(conds, " AND "))
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, args...); err != nil {
		return nil, err
	}
	return &program, nil
}

// ExistsByCode checks program-code uniqueness within the caller's scope.
func (r *ProgramRepository) ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error) {
	conds := []string{"p.code = $1"}
	args := []interface{}{code}
	if excludeID != "" {
		args = append(args, excludeID)
		conds = append(conds, fmt.Sprintf("p.id <> $%d", len(args)))
	}
	extra, extraArgs := filter.Predicates("p.tenant_id", "p.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM programs p WHERE %s)", strings.Join(conds, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check program code: %w", err)
	}
	return exists, nil
}

// Create inserts a new program record.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, code, name, description, active, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :code, :name, :description, :active, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update modifies an existing program.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET code = :code, name = :name, description = :description, active = :active,
        updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// SoftDelete tags a program as deleted within the caller's scope.
func (r *ProgramRepository) SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE programs SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete program: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete program: %w", err)
	}
	return affected > 0, nil
}

// ListSpecializations returns the live specializations of a program within
// the caller's scope, ordered by code.
func (r *ProgramRepository) ListSpecializations(ctx context.Context, filter tenancy.AccessFilter, programID string) ([]models.Specialization, error) {
	conds := []string{"sp.program_id = $1"}
	args := []interface{}{programID}
	extra, extraArgs := filter.Predicates("sp.tenant_id", "sp.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM specializations sp WHERE %s ORDER BY sp.code ASC, sp.id ASC",
		specializationColumns, strings.Join(conds, " AND "))
	var specializations []models.Specialization
	if err := r.db.SelectContext(ctx, &specializations, query, args...); err != nil {
		return nil, fmt.Errorf("list specializations: %w", err)
	}
	return specializations, nil
}

// FindSpecializationByID fetches a specialization within the caller's scope.
func (r *ProgramRepository) FindSpecializationByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Specialization, error) {
	conds := []string{"sp.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("sp.tenant_id", "sp.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM specializations sp WHERE %s", specializationColumns, strings.Join(conds, " AND "))
	var specialization models.Specialization
	if err := r.db.GetContext(ctx, &specialization, query, args...); err != nil {
		return nil, err
	}
	return &specialization, nil
}

// CreateSpecialization inserts a new specialization record.
func (r *ProgramRepository) CreateSpecialization(ctx context.Context, specialization *models.Specialization) error {
	if specialization.ID == "" {
		specialization.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if specialization.CreatedAt.IsZero() {
		specialization.CreatedAt = now
	}
	specialization.UpdatedAt = now
	const query = `INSERT INTO specializations (id, program_id, code, name, description, active, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :program_id, :code, :name, :description, :active, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, specialization); err != nil {
		return fmt.Errorf("create specialization: %w", err)
	}
	return nil
}

// UpdateSpecialization modifies an existing specialization.
func (r *ProgramRepository) UpdateSpecialization(ctx context.Context, specialization *models.Specialization) error {
	specialization.UpdatedAt = time.Now().UTC()
	const query = `UPDATE specializations SET code = :code, name = :name, description = :description, active = :active,
        updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, specialization); err != nil {
		return fmt.Errorf("update specialization: %w", err)
	}
	return nil
}

// SoftDeleteSpecialization tags a specialization as deleted within the
// caller's scope.
func (r *ProgramRepository) SoftDeleteSpecialization(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE specializations SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete specialization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete specialization: %w", err)
	}
	return affected > 0, nil
}
