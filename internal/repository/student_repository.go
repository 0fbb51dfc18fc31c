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

const studentColumns = `s.id, s.user_id, s.client_id, s.code, s.full_name, s.email, s.gender, s.birth_date, s.phone, s.address, s.active,
        s.tenant_id, s.created_by, s.updated_by, s.created_ip, s.created_at, s.updated_at, s.deleted_at, s.deleted_by`

// StudentRepository manages persistence for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// QueryConfig declares the list-query surface for students.
func (r *StudentRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "s.id",
		TenantColumn:  "s.tenant_id",
		DeletedColumn: "s.deleted_at",
		DefaultSort:   "s.created_at",
		SortColumns: map[string]string{
			"full_name":  "s.full_name",
			"code":       "s.code",
			"created_at": "s.created_at",
		},
		SearchColumns: []string{"s.full_name", "s.email", "s.code"},
		DateColumn:    "s.created_at",
		StringFilters: map[string]string{"client_id": "s.client_id"},
		BoolFilters:   map[string]string{"active": "s.active"},
	}
}

// List returns students matching the composed clause plus the total count.
func (r *StudentRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Student, int, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		studentColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students s WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student within the caller's access scope.
func (r *StudentRepository) FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Student, error) {
	conds := []string{"s.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("s.tenant_id", "s.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM students s WHERE %s", studentColumns, strings.Join(conds, " AND "))
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, args...); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByCode checks student-number uniqueness within the caller's scope.
func (r *StudentRepository) ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error) {
	conds := []string{"s.code = $1"}
	args := []interface{}{code}
	if excludeID != "" {
		args = append(args, excludeID)
		conds = append(conds, fmt.Sprintf("s.id <> $%d", len(args)))
	}
	extra, extraArgs := filter.Predicates("s.tenant_id", "s.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM students s WHERE %s)", strings.Join(conds, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check student code: %w", err)
	}
	return exists, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, client_id, code, full_name, email, gender, birth_date, phone, address, active, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :user_id, :client_id, :code, :full_name, :email, :gender, :birth_date, :phone, :address, :active, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET user_id = :user_id, client_id = :client_id, code = :code, full_name = :full_name,
        email = :email, gender = :gender, birth_date = :birth_date, phone = :phone, address = :address, active = :active,
        updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SoftDelete tags a student as deleted within the caller's scope.
func (r *StudentRepository) SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE students SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	return affected > 0, nil
}
