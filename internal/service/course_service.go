package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type courseRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Course, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, filter tenancy.AccessFilter, code string, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
	ListContent(ctx context.Context, filter tenancy.AccessFilter, courseID string) ([]models.CourseModuleDetail, error)
	CreateModule(ctx context.Context, module *models.CourseModule) error
	CreateTopic(ctx context.Context, topic *models.Topic) error
	CreateVideo(ctx context.Context, video *models.Video) error
	FindModuleByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.CourseModule, error)
	FindTopicByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Topic, error)
	FindVideoByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Video, error)
}

// CreateCourseRequest holds payload for creating courses.
type CreateCourseRequest struct {
	TenantID         *int64  `json:"tenant_id"`
	ProgramID        string  `json:"program_id" validate:"required"`
	SpecializationID *string `json:"specialization_id"`
	Code             string  `json:"code" validate:"required"`
	Title            string  `json:"title" validate:"required"`
	Description      string  `json:"description"`
	Level            string  `json:"level" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
}

// UpdateCourseRequest holds payload for updating courses.
type UpdateCourseRequest struct {
	SpecializationID *string `json:"specialization_id"`
	Code             string  `json:"code" validate:"required"`
	Title            string  `json:"title" validate:"required"`
	Description      string  `json:"description"`
	Level            string  `json:"level" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Published        bool    `json:"published"`
}

// CreateModuleRequest holds payload for adding a module to a course.
type CreateModuleRequest struct {
	Title    string `json:"title" validate:"required"`
	Position int    `json:"position" validate:"gte=0"`
}

// CreateTopicRequest holds payload for adding a topic to a module.
type CreateTopicRequest struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content"`
	Position int    `json:"position" validate:"gte=0"`
}

// CreateVideoRequest holds payload for attaching a video to a topic.
type CreateVideoRequest struct {
	Title           string `json:"title" validate:"required"`
	StoragePath     string `json:"storage_path" validate:"required"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
	Position        int    `json:"position" validate:"gte=0"`
}

// VideoPlayback is a short-lived signed playback grant.
type VideoPlayback struct {
	VideoID   string    `json:"video_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CourseService handles course and content-tree use-cases.
type CourseService struct {
	repo      courseRepository
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, signer: signer, validator: validate, logger: logger}
}

// List returns courses visible to the principal plus pagination metadata.
func (s *CourseService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.Course, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	courses, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a course with its full content tree.
func (s *CourseService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.CourseDetail, error) {
	course, err := s.findCourse(ctx, p, id)
	if err != nil {
		return nil, err
	}
	modules, err := s.repo.ListContent(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course content")
	}
	return &models.CourseDetail{Course: *course, Modules: modules}, nil
}

// Create registers a new course in unpublished state.
func (s *CourseService) Create(ctx context.Context, p tenancy.Principal, ip string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	tenantID, err := writeTenant(p, req.TenantID)
	if err != nil {
		return nil, err
	}
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &tenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already used")
	}
	course := &models.Course{
		ProgramID:        req.ProgramID,
		SpecializationID: req.SpecializationID,
		Code:             req.Code,
		Title:            req.Title,
		Description:      req.Description,
		Level:            req.Level,
		TenantScoped: models.TenantScoped{
			TenantID:  tenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.Int64("tenant_id", tenantID))
	return course, nil
}

// Update modifies an existing course. Flipping Published on stamps
// PublishedAt once; republishing keeps the original timestamp.
func (s *CourseService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.findCourse(ctx, p, id)
	if err != nil {
		return nil, err
	}
	// Code uniqueness is per tenant; pin the check to the record's tenant.
	scope := tenancy.ScopeRecord(p)
	scope.TenantID = &course.TenantID
	exists, err := s.repo.ExistsByCode(ctx, scope, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already used")
	}
	course.SpecializationID = req.SpecializationID
	course.Code = req.Code
	course.Title = req.Title
	course.Description = req.Description
	course.Level = req.Level
	if req.Published && !course.Published && course.PublishedAt == nil {
		now := time.Now().UTC()
		course.PublishedAt = &now
	}
	course.Published = req.Published
	course.UpdatedBy = &p.UserID
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete tags a course as deleted within the principal's scope.
func (s *CourseService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return nil
}

// AddModule appends a module to a course, inheriting the course's tenant.
func (s *CourseService) AddModule(ctx context.Context, p tenancy.Principal, ip string, courseID string, req CreateModuleRequest) (*models.CourseModule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	course, err := s.findCourse(ctx, p, courseID)
	if err != nil {
		return nil, err
	}
	module := &models.CourseModule{
		CourseID: courseID,
		Title:    req.Title,
		Position: req.Position,
		TenantScoped: models.TenantScoped{
			TenantID:  course.TenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.CreateModule(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}
	return module, nil
}

// AddTopic appends a topic to a module.
func (s *CourseService) AddTopic(ctx context.Context, p tenancy.Principal, ip string, moduleID string, req CreateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}
	module, err := s.repo.FindModuleByID(ctx, tenancy.ScopeRecord(p), moduleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	topic := &models.Topic{
		ModuleID: moduleID,
		Title:    req.Title,
		Content:  req.Content,
		Position: req.Position,
		TenantScoped: models.TenantScoped{
			TenantID:  module.TenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.CreateTopic(ctx, topic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topic")
	}
	return topic, nil
}

// AddVideo attaches a video asset to a topic.
func (s *CourseService) AddVideo(ctx context.Context, p tenancy.Principal, ip string, topicID string, req CreateVideoRequest) (*models.Video, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid video payload")
	}
	topic, err := s.repo.FindTopicByID(ctx, tenancy.ScopeRecord(p), topicID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	video := &models.Video{
		TopicID:         topicID,
		Title:           req.Title,
		StoragePath:     req.StoragePath,
		DurationSeconds: req.DurationSeconds,
		Position:        req.Position,
		TenantScoped: models.TenantScoped{
			TenantID:  topic.TenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create video")
	}
	return video, nil
}

// PlaybackURL issues a signed playback token for a video within the
// principal's scope. The raw storage path never leaves the server.
func (s *CourseService) PlaybackURL(ctx context.Context, p tenancy.Principal, videoID string) (*VideoPlayback, error) {
	video, err := s.repo.FindVideoByID(ctx, tenancy.ScopeRecord(p), videoID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "media signing unavailable")
	}
	token, expiresAt, err := s.signer.Generate(video.ID, video.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign playback url")
	}
	return &VideoPlayback{VideoID: video.ID, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *CourseService) findCourse(ctx context.Context, p tenancy.Principal, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
