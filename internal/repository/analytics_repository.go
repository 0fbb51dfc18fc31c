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

// AnalyticsRepository exposes read-optimised aggregate queries for the
// analytics endpoints. Every aggregate applies the caller's access filter, so
// a tenant admin only ever counts rows of their own tenant.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// TenantOverview computes the headline counters for a tenant.
func (r *AnalyticsRepository) TenantOverview(ctx context.Context, filter tenancy.AccessFilter, tenantID int64) (*models.TenantOverview, error) {
	overview := &models.TenantOverview{TenantID: tenantID, GeneratedAt: time.Now().UTC()}

	counts := []struct {
		dest  *int
		table string
		alias string
		extra string
	}{
		{&overview.StudentCount, "students", "s", ""},
		{&overview.TeacherCount, "teachers", "t", ""},
		{&overview.CourseCount, "courses", "c", ""},
		{&overview.ActiveEnrollments, "enrollments", "e", "e.status = 'ACTIVE'"},
		{&overview.CompletedEnrollments, "enrollments", "e", "e.status = 'COMPLETED'"},
	}
	for _, c := range counts {
		var conds []string
		var args []interface{}
		if c.extra != "" {
			conds = append(conds, c.extra)
		}
		extra, extraArgs := filter.Predicates(c.alias+".tenant_id", c.alias+".deleted_at", len(args))
		conds = append(conds, extra...)
		args = append(args, extraArgs...)
		where := "1=1"
		if len(conds) > 0 {
			where = strings.Join(conds, " AND ")
		}
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s WHERE %s", c.table, c.alias, where)
		if err := r.db.GetContext(ctx, c.dest, query, args...); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	finished := overview.ActiveEnrollments + overview.CompletedEnrollments
	if finished > 0 {
		overview.CompletionRate = float64(overview.CompletedEnrollments) / float64(finished) * 100
	}
	return overview, nil
}

// CourseEngagement summarizes enrollment activity per course, most enrolled
// first.
func (r *AnalyticsRepository) CourseEngagement(ctx context.Context, filter tenancy.AccessFilter, limit int) ([]models.CourseEngagement, error) {
	if limit <= 0 {
		limit = 10
	}
	conds := []string{}
	args := []interface{}{}
	extra, extraArgs := filter.Predicates("c.tenant_id", "c.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)
	where := "1=1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(`SELECT c.id AS course_id, c.title AS course_title,
        COUNT(e.id) FILTER (WHERE e.deleted_at IS NULL) AS enrolled,
        COUNT(e.id) FILTER (WHERE e.deleted_at IS NULL AND e.status = 'COMPLETED') AS completed,
        COALESCE(AVG(e.progress) FILTER (WHERE e.deleted_at IS NULL), 0) AS avg_progress
        FROM courses c
        LEFT JOIN enrollments e ON e.course_id = c.id
        WHERE %s
        GROUP BY c.id, c.title
        ORDER BY enrolled DESC, c.id ASC
        LIMIT %d`, where, limit)

	var engagement []models.CourseEngagement
	if err := r.db.SelectContext(ctx, &engagement, query, args...); err != nil {
		return nil, fmt.Errorf("query course engagement: %w", err)
	}
	return engagement, nil
}
