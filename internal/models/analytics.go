package models

import "time"

// TenantOverview aggregates headline counters for a tenant. Counts are
// computed from count queries sharing the access-filter predicates, so they
// may be momentarily stale relative to each other under concurrent writes.
type TenantOverview struct {
	TenantID             int64     `db:"tenant_id" json:"tenant_id"`
	StudentCount         int       `db:"student_count" json:"student_count"`
	TeacherCount         int       `db:"teacher_count" json:"teacher_count"`
	CourseCount          int       `db:"course_count" json:"course_count"`
	ActiveEnrollments    int       `db:"active_enrollments" json:"active_enrollments"`
	CompletedEnrollments int       `db:"completed_enrollments" json:"completed_enrollments"`
	CompletionRate       float64   `json:"completion_rate"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// CourseEngagement summarizes enrollment activity per course.
type CourseEngagement struct {
	CourseID    string  `db:"course_id" json:"course_id"`
	CourseTitle string  `db:"course_title" json:"course_title"`
	Enrolled    int     `db:"enrolled" json:"enrolled"`
	Completed   int     `db:"completed" json:"completed"`
	AvgProgress float64 `db:"avg_progress" json:"avg_progress"`
}

// SystemMetrics is a lightweight instrumentation snapshot exposed through the
// analytics API.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
