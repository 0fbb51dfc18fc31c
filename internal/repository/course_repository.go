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

const courseColumns = `co.id, co.program_id, co.specialization_id, co.code, co.title, co.description, co.level, co.published, co.published_at,
        co.tenant_id, co.created_by, co.updated_by, co.created_ip, co.created_at, co.updated_at, co.deleted_at, co.deleted_by`

// CourseRepository manages persistence for courses and their nested content
// (modules, topics, videos).
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// QueryConfig declares the list-query surface for courses.
func (r *CourseRepository) QueryConfig() tenancy.Config {
	return tenancy.Config{
		PrimaryKey:    "co.id",
		TenantColumn:  "co.tenant_id",
		DeletedColumn: "co.deleted_at",
		DefaultSort:   "co.created_at",
		SortColumns: map[string]string{
			"title":      "co.title",
			"code":       "co.code",
			"level":      "co.level",
			"created_at": "co.created_at",
		},
		SearchColumns: []string{"co.title", "co.code"},
		DateColumn:    "co.created_at",
		StringFilters: map[string]string{
			"program_id":        "co.program_id",
			"specialization_id": "co.specialization_id",
		},
		BoolFilters: map[string]string{"published": "co.published"},
		EnumFilters: map[string]string{"level": "co.level"},
	}
}

// List returns courses matching the composed clause plus the total count.
func (r *CourseRepository) List(ctx context.Context, clause tenancy.Clause) ([]models.Course, int, error) {
	query := fmt.Sprintf("SELECT %s FROM courses co WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		courseColumns, clause.Where, clause.OrderBy, clause.Limit, clause.Offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM courses co WHERE %s", clause.Where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, clause.Args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches a course within the caller's access scope.
func (r *CourseRepository) FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Course, error) {
	conds := []string{"co.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("co.tenant_id", "co.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT %s FROM courses co WHERE %s", courseColumns, strings.Join(conds, " AND "))
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, args...); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode checks course-code uniqueness within the caller's scope.
func (r *CourseRepository) ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error) {
	conds := []string{"co.code = $1"}
	args := []interface{}{code}
	if excludeID != "" {
		args = append(args, excludeID)
		conds = append(conds, fmt.Sprintf("co.id <> $%d", len(args)))
	}
	extra, extraArgs := filter.Predicates("co.tenant_id", "co.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM courses co WHERE %s)", strings.Join(conds, " AND "))
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check course code: %w", err)
	}
	return exists, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, program_id, specialization_id, code, title, description, level, published, published_at, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :program_id, :specialization_id, :code, :title, :description, :level, :published, :published_at, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET program_id = :program_id, specialization_id = :specialization_id, code = :code,
        title = :title, description = :description, level = :level, published = :published, published_at = :published_at,
        updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SoftDelete tags a course as deleted within the caller's scope.
func (r *CourseRepository) SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error) {
	conds := []string{"id = $3"}
	args := []interface{}{time.Now().UTC(), deletedBy, id}
	extra, extraArgs := filter.Predicates("tenant_id", "deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf("UPDATE courses SET deleted_at = $1, deleted_by = $2 WHERE %s", strings.Join(conds, " AND "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	return affected > 0, nil
}

// ListContent loads the full module → topic → video tree for a course within
// the caller's scope, ordered by position.
func (r *CourseRepository) ListContent(ctx context.Context, filter tenancy.AccessFilter, courseID string) ([]models.CourseModuleDetail, error) {
	moduleConds := []string{"m.course_id = $1"}
	args := []interface{}{courseID}
	extra, extraArgs := filter.Predicates("m.tenant_id", "m.deleted_at", len(args))
	moduleConds = append(moduleConds, extra...)
	args = append(args, extraArgs...)

	moduleQuery := fmt.Sprintf(`SELECT m.id, m.course_id, m.title, m.position,
        m.tenant_id, m.created_by, m.updated_by, m.created_ip, m.created_at, m.updated_at, m.deleted_at, m.deleted_by
        FROM course_modules m WHERE %s ORDER BY m.position ASC, m.id ASC`, strings.Join(moduleConds, " AND "))
	var modules []models.CourseModule
	if err := r.db.SelectContext(ctx, &modules, moduleQuery, args...); err != nil {
		return nil, fmt.Errorf("list course modules: %w", err)
	}
	if len(modules) == 0 {
		return []models.CourseModuleDetail{}, nil
	}

	topicConds := []string{"tp.module_id IN (SELECT m.id FROM course_modules m WHERE m.course_id = $1 AND m.deleted_at IS NULL)"}
	topicArgs := []interface{}{courseID}
	extra, extraArgs = filter.Predicates("tp.tenant_id", "tp.deleted_at", len(topicArgs))
	topicConds = append(topicConds, extra...)
	topicArgs = append(topicArgs, extraArgs...)

	topicQuery := fmt.Sprintf(`SELECT tp.id, tp.module_id, tp.title, tp.content, tp.position,
        tp.tenant_id, tp.created_by, tp.updated_by, tp.created_ip, tp.created_at, tp.updated_at, tp.deleted_at, tp.deleted_by
        FROM topics tp WHERE %s ORDER BY tp.position ASC, tp.id ASC`, strings.Join(topicConds, " AND "))
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, topicQuery, topicArgs...); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	videoConds := []string{"v.topic_id IN (SELECT tp.id FROM topics tp JOIN course_modules m ON m.id = tp.module_id WHERE m.course_id = $1 AND tp.deleted_at IS NULL)"}
	videoArgs := []interface{}{courseID}
	extra, extraArgs = filter.Predicates("v.tenant_id", "v.deleted_at", len(videoArgs))
	videoConds = append(videoConds, extra...)
	videoArgs = append(videoArgs, extraArgs...)

	videoQuery := fmt.Sprintf(`SELECT v.id, v.topic_id, v.title, v.storage_path, v.duration_seconds, v.position,
        v.tenant_id, v.created_by, v.updated_by, v.created_ip, v.created_at, v.updated_at, v.deleted_at, v.deleted_by
        FROM videos v WHERE %s ORDER BY v.position ASC, v.id ASC`, strings.Join(videoConds, " AND "))
	var videos []models.Video
	if err := r.db.SelectContext(ctx, &videos, videoQuery, videoArgs...); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	videosByTopic := make(map[string][]models.Video, len(topics))
	for _, video := range videos {
		videosByTopic[video.TopicID] = append(videosByTopic[video.TopicID], video)
	}
	topicsByModule := make(map[string][]models.TopicDetail, len(modules))
	for _, topic := range topics {
		detail := models.TopicDetail{Topic: topic, Videos: videosByTopic[topic.ID]}
		if detail.Videos == nil {
			detail.Videos = []models.Video{}
		}
		topicsByModule[topic.ModuleID] = append(topicsByModule[topic.ModuleID], detail)
	}

	details := make([]models.CourseModuleDetail, 0, len(modules))
	for _, module := range modules {
		detail := models.CourseModuleDetail{CourseModule: module, Topics: topicsByModule[module.ID]}
		if detail.Topics == nil {
			detail.Topics = []models.TopicDetail{}
		}
		details = append(details, detail)
	}
	return details, nil
}

// CreateModule inserts a module row.
func (r *CourseRepository) CreateModule(ctx context.Context, module *models.CourseModule) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if module.CreatedAt.IsZero() {
		module.CreatedAt = now
	}
	module.UpdatedAt = now
	const query = `INSERT INTO course_modules (id, course_id, title, position, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :course_id, :title, :position, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create course module: %w", err)
	}
	return nil
}

// CreateTopic inserts a topic row.
func (r *CourseRepository) CreateTopic(ctx context.Context, topic *models.Topic) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = now
	}
	topic.UpdatedAt = now
	const query = `INSERT INTO topics (id, module_id, title, content, position, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :module_id, :title, :content, :position, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// FindModuleByID fetches a module within the caller's scope.
func (r *CourseRepository) FindModuleByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.CourseModule, error) {
	conds := []string{"m.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("m.tenant_id", "m.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf(`SELECT m.id, m.course_id, m.title, m.position,
        m.tenant_id, m.created_by, m.updated_by, m.created_ip, m.created_at, m.updated_at, m.deleted_at, m.deleted_by
        FROM course_modules m WHERE %s`, strings.Join(conds, " AND "))
	var module models.CourseModule
	if err := r.db.GetContext(ctx, &module, query, args...); err != nil {
		return nil, err
	}
	return &module, nil
}

// FindTopicByID fetches a topic within the caller's scope.
func (r *CourseRepository) FindTopicByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Topic, error) {
	conds := []string{"tp.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("tp.tenant_id", "tp.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf(`SELECT tp.id, tp.module_id, tp.title, tp.content, tp.position,
        tp.tenant_id, tp.created_by, tp.updated_by, tp.created_ip, tp.created_at, tp.updated_at, tp.deleted_at, tp.deleted_by
        FROM topics tp WHERE %s`, strings.Join(conds, " AND "))
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, args...); err != nil {
		return nil, err
	}
	return &topic, nil
}

// CreateVideo inserts a video row.
func (r *CourseRepository) CreateVideo(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now
	const query = `INSERT INTO videos (id, topic_id, title, storage_path, duration_seconds, position, tenant_id, created_by, updated_by, created_ip, created_at, updated_at)
        VALUES (:id, :topic_id, :title, :storage_path, :duration_seconds, :position, :tenant_id, :created_by, :updated_by, :created_ip, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

// FindVideoByID fetches a video within the caller's scope.
func (r *CourseRepository) FindVideoByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Video, error) {
	conds := []string{"v.id = $1"}
	args := []interface{}{id}
	extra, extraArgs := filter.Predicates("v.tenant_id", "v.deleted_at", len(args))
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	query := fmt.Sprintf(`SELECT v.id, v.topic_id, v.title, v.storage_path, v.duration_seconds, v.position,
        v.tenant_id, v.created_by, v.updated_by, v.created_ip, v.created_at, v.updated_at, v.deleted_at, v.deleted_by
        FROM videos v WHERE %s`, strings.Join(conds, " AND "))
	var video models.Video
	if err := r.db.GetContext(ctx, &video, query, args...); err != nil {
		return nil, err
	}
	return &video, nil
}
