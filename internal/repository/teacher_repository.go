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

const teacherColumns = `t.id, t.user_id, t.code, t.full_name, t.email, t.specialty, t.phone, t.active,
        t.tenant_id, t.created_by, t.updated_by, t.created_ip, t.created_at, t.updated_at, t.deleted_at, t.deleted_by`

// TeacherRepository manages persistence for instructor profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// QueryConfig declares the list-query surface for teachers.
func (r *TeacherRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "t.id",
		TenantColumn:  "t.tenant_id",
		DeletedColumn: "t.deleted_at",
		DefaultSort:   "t.created_at",
		SortColumns: map[string]string{
			"full_name":  "t.full_name",
			"code":       "t.code",
			"specialty":  "t.specialty",
			"created_at": "t.created_at",
		},
		SearchColumns: []string{"t.full_name", "t.email", "t.specialty"},
		DateColumn:    "t.created_at",
		BoolFilters:   map[string]string{"active": "t.active"},
		StringFilters: map[string]string{"specialty": "t.specialty"},
	}
}

// List returns teachers matching the composed clause plus the total count.
func (r *TeacherRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Teacher, int, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers t WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		teacherColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM teachers t WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID fetches a teacher within the caller's access scope.
func (r *TeacherRepository) FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Teacher, error) {
	conds := []string{"t.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("t.tenant_id", "t.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM teachers t WHERE %s", teacherColumns, strings.Join(conds, " AND "))
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, args...); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsByCode checks staff-code uniqueness within the caller's scope.
func (r *TeacherRepository) ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error) {
	conds := []string{"t.code = $1"}
	args := []interface{}{code}
	if excludeID != "" {
		args = append(args, excludeID)
		conds = append(conds, fmt.Sprintf("t.id <> $%d", len(args)))
	}
	extra, extraArgs := filter.Predicates("t.tenant_id", "t.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM teachers t WHERE %s)", strings.Join(conds, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check teacher code: %w", err)
	}
	return exists, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, user_id, code, full_name, email, specialty, phone, active, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :user_id, :code, :full_name, :email, :specialty, :phone, :active, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update modifies an existing teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET user_id = :user_id, code = :code, full_name = :full_name, email = :email,
        specialty = :specialty, phone = :phone, active = :active, updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// SoftDelete tags a teacher as deleted within the caller's scope.
func (r *TeacherRepository) SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE teachers SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete teacher: %w", err)
	}
	return affected > 0, nil
}
