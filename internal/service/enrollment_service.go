package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type enrollmentRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, filter tenancy.AccessFilter, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	SoftDelete(ctx context.Context, filter tenancy.AccessFilter, id string, deletedBy string) (bool, error)
}

type enrollmentStudentFinder interface {
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Student, error)
}

type enrollmentCourseFinder interface {
	FindByID(ctx context.Context, filter tenancy.AccessFilter, id string) (*models.Course, error)
}

type enrollmentNotifier interface {
	Broadcast(broadcast models.NotificationBroadcast)
}

// EnrollRequest holds payload for enrolling a student into a course.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// UpdateEnrollmentRequest holds payload for progress and status changes.
type UpdateEnrollmentRequest struct {
	Status   models.EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE COMPLETED DROPPED"`
	Progress int                     `json:"progress" validate:"gte=0,lte=100"`
}

// EnrollmentService handles enrollment use-cases.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  enrollmentStudentFinder
	courses   enrollmentCourseFinder
	notifier  enrollmentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentFinder, courses enrollmentCourseFinder, notifier enrollmentNotifier, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, notifier: notifier, validator: validate, logger: logger}
}

// List returns enrollments visible to the principal plus pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, p tenancy.Principal, tenantOverride *int64, q tenancy.ListQuery, f tenancy.Filters) ([]models.EnrollmentDetail, *tenancy.Pagination, error) {
	clause, err := tenancy.Build(tenancy.Scope(p, tenantOverride), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	enrollments, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// Get returns a single enrollment within the principal's scope.
func (s *EnrollmentService) Get(ctx context.Context, p tenancy.Principal, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, tenancy.ScopeRecord(p), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student into a published course. Both records must be
// visible to the principal; the enrollment inherits the student's tenant.
func (s *EnrollmentService) Enroll(ctx context.Context, p tenancy.Principal, ip string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	scope := tenancy.ScopeRecord(p)
	student, err := s.students.FindByID(ctx, scope, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, scope, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if student.TenantID != course.TenantID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is not published")
	}
	active, err := s.repo.ExistsActive(ctx, scope, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled")
	}
	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Status:    models.EnrollmentStatusActive,
		TenantScoped: models.TenantScoped{
			TenantID:  student.TenantID,
			CreatedBy: &p.UserID,
			CreatedIP: ip,
		},
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID))
	if s.notifier != nil && student.UserID != nil {
		s.notifier.Broadcast(models.NotificationBroadcast{
			TenantID: student.TenantID,
			UserIDs:  []string{*student.UserID},
			Kind:     models.NotificationKindEnrollment,
			Title:    "Enrollment confirmed",
			Body:     fmt.Sprintf("You are enrolled in %s.", course.Title),
		})
	}
	return enrollment, nil
}

// Update applies a status transition with progress. Completed and dropped are
// terminal states.
func (s *EnrollmentService) Update(ctx context.Context, p tenancy.Principal, id string, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive && enrollment.Status != req.Status {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot transition from %s", enrollment.Status))
	}
	if req.Status == models.EnrollmentStatusCompleted && enrollment.CompletedAt == nil {
		now := time.Now().UTC()
		enrollment.CompletedAt = &now
		req.Progress = 100
	}
	enrollment.Status = req.Status
	enrollment.Progress = req.Progress
	enrollment.UpdatedBy = &p.UserID
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	return enrollment, nil
}

// Delete tags an enrollment as deleted within the principal's scope.
func (s *EnrollmentService) Delete(ctx context.Context, p tenancy.Principal, id string) error {
	deleted, err := s.repo.SoftDelete(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return nil
}
