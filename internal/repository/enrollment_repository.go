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

const enrollmentColumns = `e.id, e.student_id, e.course_id, e.status, e.progress, e.enrolled_at, e.completed_at,
        e.tenant_id, e.created_by, e.updated_by, e.created_ip, e.created_at, e.updated_at, e.deleted_at, e.deleted_by`

// EnrollmentRepository manages persistence for course enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// QueryConfig declares the list-query surface for enrollments.
func (r *EnrollmentRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "e.id",
		TenantColumn:  "e.tenant_id",
		DeletedColumn: "e.deleted_at",
		DefaultSort:   "e.enrolled_at",
		SortColumns: map[string]string{
			"enrolled_at": "e.enrolled_at",
			"progress":    "e.progress",
			"status":      "e.status",
			"created_at":  "e.created_at",
		},
		SearchColumns: []string{"s.full_name", "co.title"},
		DateColumn:    "e.enrolled_at",
		StringFilters: map[string]string{
			"student_id": "e.student_id",
			"course_id":  "e.course_id",
		},
		EnumFilters: map[string]string{"status": "e.status"},
	}
}

// List returns enrollment details matching the composed clause plus the
// total count. Joined student/course rows are live rows only.
func (r *EnrollmentRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses co ON co.id = e.course_id`
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, s.code AS student_code, co.title AS course_title, co.code AS course_code
        %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		enrollmentColumns, base, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID fetches an enrollment within the caller's access scope.
func (r *EnrollmentRepository) FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Enrollment, error) {
	conds := []string{"e.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("e.tenant_id", "e.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM enrollments e WHERE %s", enrollmentColumns, strings.Join(conds, " AND "))
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, args...); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive reports whether the student already holds a live ACTIVE
// enrollment for the course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, filter tenancy.AccessFilter, studentID, courseID string) (bool, error) {
	conds := []string{"e.student_id = $1", "e.course_id = $2", "e.status = $3"}
	args := []interface{}{studentID, courseID, models.EnrollmentStatusActive}
	extra, extraArgs := filter.Predicates("e.tenant_id", "e.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM enrollments e WHERE %s)", strings.Join(conds, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, progress, enrolled_at, completed_at, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :progress, :enrolled_at, :completed_at, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update modifies an existing enrollment's status and progress.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, progress = :progress, completed_at = :completed_at,
        updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// SoftDelete tags an enrollment as deleted within the caller's scope.
func (r *EnrollmentRepository) SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE enrollments SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return affected > 0, nil
}
